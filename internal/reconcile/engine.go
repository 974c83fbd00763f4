package reconcile

import (
	"errors"
	"sort"

	"github.com/doriyyds-dori/dcc-dashboard/internal/model"
	"github.com/doriyyds-dori/dcc-dashboard/internal/normalize"
)

// Inputs 对账输入：五张归一化表。Attribution 可为 nil（可选维表）。
type Inputs struct {
	FunnelAgg    *model.NormalizedTable
	FunnelDetail *model.NormalizedTable
	QA           *model.NormalizedTable
	CallMetrics  *model.NormalizedTable
	StoreRank    *model.NormalizedTable
	Attribution  *model.NormalizedTable
}

// Engine 跨源对账引擎。同样的输入对账两次必须产出字节一致的结果：
// 不依赖 map 迭代序，多值冲突按既定顺序取首个。
type Engine struct{}

// NewEngine 创建对账引擎
func NewEngine() *Engine {
	return &Engine{}
}

// Reconcile 把归一化后的各源表连接为专员表与门店表
func (e *Engine) Reconcile(in Inputs) (*model.AdvisorTable, *model.StoreTable, []model.DataQualityWarning, error) {
	if in.FunnelDetail == nil || in.QA == nil || in.CallMetrics == nil || in.StoreRank == nil {
		return nil, nil, nil, errors.New("reconcile: required source table missing")
	}

	var warnings []model.DataQualityWarning

	qaIdx := indexByAdvisor(in.QA)
	callHasStore := tableHasStoreLabels(in.CallMetrics)
	callIdx := indexCall(in.CallMetrics)

	advisors := e.buildAdvisors(in, qaIdx, callIdx)
	stores, storeWarns := e.buildStores(in, advisors, callHasStore)
	warnings = append(warnings, storeWarns...)

	attrWarns := e.enrichAttribution(in.Attribution, advisors, stores)
	warnings = append(warnings, attrWarns...)

	sort.Slice(advisors, func(i, j int) bool {
		if advisors[i].StoreName != advisors[j].StoreName {
			return advisors[i].StoreName < advisors[j].StoreName
		}
		return advisors[i].AdvisorName < advisors[j].AdvisorName
	})
	sort.Slice(stores, func(i, j int) bool {
		return stores[i].StoreName < stores[j].StoreName
	})

	return &model.AdvisorTable{Records: advisors}, &model.StoreTable{Records: stores}, warnings, nil
}

// buildAdvisors 专员连接：漏斗明细 左连 质检（专员名），
// 再左连 外呼（门店+专员名复合键，未命中退回专员名键）。
// 未匹配上的专员保留漏斗字段，质检/外呼比例置空指针——
// “本期未抽检”不等于 0 分。
func (e *Engine) buildAdvisors(in Inputs, qaIdx map[string]int, callIdx map[string]int) []*model.AdvisorRecord {
	records := make([]*model.AdvisorRecord, 0, in.FunnelDetail.Len())

	for i := 0; i < in.FunnelDetail.Len(); i++ {
		labels := in.FunnelDetail.Labels[i]
		values := in.FunnelDetail.Rows[i]

		rec := &model.AdvisorRecord{
			StoreName:   labels[model.FieldStoreName],
			AdvisorName: labels[model.FieldAdvisorName],
			LeadCount:   values[model.FieldLeadCount],
			VisitCount:  values[model.FieldVisitCount],
		}
		rec.VisitRate = values[model.FieldVisitRate]
		if rec.VisitRate == 0 {
			rec.VisitRate = normalize.SafeDiv(rec.VisitCount, rec.LeadCount)
		}

		if qi, ok := qaIdx[NormalizeKey(rec.AdvisorName)]; ok {
			qv := in.QA.Rows[qi]
			for _, f := range model.QAFields {
				setAdvisorQA(rec, f, scorePtr(qv, f))
			}
		}

		ci, ok := callIdx[joinKey(rec.StoreName, rec.AdvisorName)]
		if !ok {
			ci, ok = callIdx[NormalizeKey(rec.AdvisorName)]
		}
		if ok {
			cv := in.CallMetrics.Rows[ci]
			rec.CallDuration = cv[model.FieldCallDuration]
			rec.ConnectedNum = cv[model.FieldConnectedNum]
			rec.ConnectedDen = cv[model.FieldConnectedDen]
			rec.TimelyNum = cv[model.FieldTimelyNum]
			rec.TimelyDen = cv[model.FieldTimelyDen]
			rec.Recall2Num = cv[model.FieldRecall2Num]
			rec.Recall2Den = cv[model.FieldRecall2Den]
			rec.Recall3Num = cv[model.FieldRecall3Num]
			rec.Recall3Den = cv[model.FieldRecall3Den]
			rates := callRates(cv)
			rec.ConnectedRate = rates[model.FieldConnectedRate]
			rec.TimelyRate = rates[model.FieldTimelyRate]
			rec.Recall2Rate = rates[model.FieldRecall2Rate]
			rec.Recall3Rate = rates[model.FieldRecall3Rate]
		}

		records = append(records, rec)
	}
	return records
}

// buildStores 门店表：小计行存在时采信小计行数值；没有小计行的门店
// 由该店专员明细求和兜底。外呼比例恒由分子/分母汇总后重算——
// 加权口径，绝不取专员比例的算术平均。
func (e *Engine) buildStores(in Inputs, advisors []*model.AdvisorRecord, callHasStore bool) ([]*model.StoreRecord, []model.DataQualityWarning) {
	var warnings []model.DataQualityWarning

	byKey := make(map[string]*model.StoreRecord)
	var order []string

	// 1. 小计行优先
	if in.FunnelAgg != nil {
		for i := 0; i < in.FunnelAgg.Len(); i++ {
			name := in.FunnelAgg.Labels[i][model.FieldStoreName]
			key := NormalizeKey(name)
			if key == "" {
				continue
			}
			if _, ok := byKey[key]; ok {
				continue
			}
			values := in.FunnelAgg.Rows[i]
			rec := &model.StoreRecord{
				StoreName:    name,
				LeadCount:    values[model.FieldLeadCount],
				VisitCount:   values[model.FieldVisitCount],
				FromSubtotal: true,
			}
			rec.VisitRate = values[model.FieldVisitRate]
			if rec.VisitRate == 0 {
				rec.VisitRate = normalize.SafeDiv(rec.VisitCount, rec.LeadCount)
			}
			byKey[key] = rec
			order = append(order, key)
		}
	}

	// 2. 有专员但没有小计行的门店：明细求和兜底，不允许悄悄丢店
	missingSubtotal := false
	for _, adv := range advisors {
		key := NormalizeKey(adv.StoreName)
		if key == "" {
			continue
		}
		rec, ok := byKey[key]
		if !ok {
			missingSubtotal = true
			rec = &model.StoreRecord{StoreName: adv.StoreName}
			byKey[key] = rec
			order = append(order, key)
		}
		if !rec.FromSubtotal {
			rec.LeadCount += adv.LeadCount
			rec.VisitCount += adv.VisitCount
			rec.VisitRate = normalize.SafeDiv(rec.VisitCount, rec.LeadCount)
		}
	}
	if missingSubtotal {
		warnings = append(warnings, model.DataQualityWarning{
			Kind:    model.WarnSubtotalMissing,
			Source:  model.SourceTypeFunnel,
			Message: "funnel source has stores without subtotal rows, store totals derived from detail rows",
		})
	}

	// 3. 门店质检：排名表优先，缺席则取该店专员质检均值（空值剔除）
	rankIdx := indexByStore(in.StoreRank)
	for _, key := range order {
		rec := byKey[key]
		if ri, ok := rankIdx[key]; ok {
			rv := in.StoreRank.Rows[ri]
			for _, f := range model.QAFields {
				setStoreQA(rec, f, scorePtr(rv, f))
			}
			rec.QAFromStoreRank = true
			continue
		}
		for _, f := range model.QAFields {
			setStoreQA(rec, f, meanQA(advisors, key, f))
		}
	}

	// 4. 门店外呼：分子/分母分别求和后重算比例（加权平均）
	sums := storeCallSums(in.CallMetrics, advisors, callHasStore)
	for _, key := range order {
		rec := byKey[key]
		s, ok := sums[key]
		if !ok {
			continue
		}
		rec.CallDuration = s[model.FieldCallDuration]
		rec.ConnectedNum = s[model.FieldConnectedNum]
		rec.ConnectedDen = s[model.FieldConnectedDen]
		rec.TimelyNum = s[model.FieldTimelyNum]
		rec.TimelyDen = s[model.FieldTimelyDen]
		rec.Recall2Num = s[model.FieldRecall2Num]
		rec.Recall2Den = s[model.FieldRecall2Den]
		rec.Recall3Num = s[model.FieldRecall3Num]
		rec.Recall3Den = s[model.FieldRecall3Den]
		rec.ConnectedRate = normalize.SafeDiv(rec.ConnectedNum, rec.ConnectedDen)
		rec.TimelyRate = normalize.SafeDiv(rec.TimelyNum, rec.TimelyDen)
		rec.Recall2Rate = normalize.SafeDiv(rec.Recall2Num, rec.Recall2Den)
		rec.Recall3Rate = normalize.SafeDiv(rec.Recall3Num, rec.Recall3Den)
	}

	records := make([]*model.StoreRecord, 0, len(order))
	for _, key := range order {
		records = append(records, byKey[key])
	}
	return records, warnings
}

// enrichAttribution 归属维表富化：门店名归一后左连，未命中一律置
// “未知”占位，维表整体缺失降级为警告而不是失败。
func (e *Engine) enrichAttribution(attr *model.NormalizedTable, advisors []*model.AdvisorRecord, stores []*model.StoreRecord) []model.DataQualityWarning {
	var warnings []model.DataQualityWarning

	type attrRow struct{ manager, province, city string }
	idx := make(map[string]attrRow)
	if attr != nil {
		for i := 0; i < attr.Len(); i++ {
			key := NormalizeKey(attr.Labels[i][model.FieldStoreName])
			if key == "" {
				continue
			}
			if _, ok := idx[key]; ok {
				continue
			}
			idx[key] = attrRow{
				manager:  orUnknown(attr.Labels[i][model.FieldRegionManager]),
				province: orUnknown(attr.Labels[i][model.FieldProvince]),
				city:     orUnknown(attr.Labels[i][model.FieldCity]),
			}
		}
	}
	if attr == nil || attr.Len() == 0 {
		warnings = append(warnings, model.DataQualityWarning{
			Kind:    model.WarnAttributionMissing,
			Source:  model.SourceTypeAttribution,
			Message: "attribution source missing or empty, region/province/city defaulted to " + model.UnknownAttribution,
		})
	}

	lookup := func(store string) attrRow {
		if row, ok := idx[NormalizeKey(store)]; ok {
			return row
		}
		return attrRow{model.UnknownAttribution, model.UnknownAttribution, model.UnknownAttribution}
	}

	for _, adv := range advisors {
		row := lookup(adv.StoreName)
		adv.RegionManager = row.manager
		adv.Province = row.province
		adv.City = row.city
	}
	for _, st := range stores {
		row := lookup(st.StoreName)
		st.RegionManager = row.manager
		st.Province = row.province
		st.City = row.city
	}
	return warnings
}

// storeCallSums 按门店汇总外呼分子/分母。外呼表自带门店列时直接
// 按表分组，门店格空缺的行经由专员归店；整列缺失时全部经由专员
// 连接结果归店。
func storeCallSums(call *model.NormalizedTable, advisors []*model.AdvisorRecord, callHasStore bool) map[string]map[string]float64 {
	sumFields := callSumFields()

	sums := make(map[string]map[string]float64)
	add := func(key string, get func(field string) float64) {
		if key == "" {
			return
		}
		s, ok := sums[key]
		if !ok {
			s = make(map[string]float64, len(sumFields))
			sums[key] = s
		}
		for _, f := range sumFields {
			s[f] += get(f)
		}
	}

	if callHasStore {
		advStore := make(map[string]string, len(advisors))
		for _, adv := range advisors {
			k := NormalizeKey(adv.AdvisorName)
			if _, ok := advStore[k]; !ok {
				advStore[k] = adv.StoreName
			}
		}
		for i := 0; i < call.Len(); i++ {
			values := call.Rows[i]
			storeKey := NormalizeKey(call.Labels[i][model.FieldStoreName])
			if storeKey == "" {
				storeKey = NormalizeKey(advStore[NormalizeKey(call.Labels[i][model.FieldAdvisorName])])
			}
			add(storeKey, func(f string) float64 { return values[f] })
		}
		return sums
	}

	for _, adv := range advisors {
		values := map[string]float64{
			model.FieldCallDuration: adv.CallDuration,
			model.FieldConnectedNum: adv.ConnectedNum, model.FieldConnectedDen: adv.ConnectedDen,
			model.FieldTimelyNum: adv.TimelyNum, model.FieldTimelyDen: adv.TimelyDen,
			model.FieldRecall2Num: adv.Recall2Num, model.FieldRecall2Den: adv.Recall2Den,
			model.FieldRecall3Num: adv.Recall3Num, model.FieldRecall3Den: adv.Recall3Den,
		}
		add(NormalizeKey(adv.StoreName), func(f string) float64 { return values[f] })
	}
	return sums
}

// callSumFields 需要按门店求和的外呼字段：时长 + 四对分子/分母
func callSumFields() []string {
	fields := []string{model.FieldCallDuration}
	for _, rf := range model.CallRatioFields {
		fields = append(fields, rf.Num, rf.Den)
	}
	return fields
}

// callRates 由分子/分母重算外呼比例。某口径的分子分母列都没解析出来时
// 保持空指针，不折算成 0。
func callRates(values map[string]float64) map[string]*float64 {
	out := make(map[string]*float64, len(model.CallRatioFields))
	for _, rf := range model.CallRatioFields {
		_, nok := values[rf.Num]
		_, dok := values[rf.Den]
		if !nok && !dok {
			continue
		}
		out[rf.Rate] = model.Float(normalize.SafeDiv(values[rf.Num], values[rf.Den]))
	}
	return out
}

// scorePtr 取质检子项。源表没解析出该列时返回空指针，
// “列缺失”不折算成 0 分。
func scorePtr(values map[string]float64, field string) *float64 {
	v, ok := values[field]
	if !ok {
		return nil
	}
	return model.Float(v)
}

// meanQA 某店专员某质检子项的均值，空指针（未抽检）剔除；全员未抽检得 nil
func meanQA(advisors []*model.AdvisorRecord, storeKey, field string) *float64 {
	sum := 0.0
	n := 0
	for _, adv := range advisors {
		if NormalizeKey(adv.StoreName) != storeKey {
			continue
		}
		if v := qaScore(adv, field); v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return nil
	}
	return model.Float(sum / float64(n))
}

// qaScore 按字段名读取专员质检子项
func qaScore(a *model.AdvisorRecord, field string) *float64 {
	switch field {
	case model.FieldQATotal:
		return a.QATotal
	case model.FieldQA60s:
		return a.QA60s
	case model.FieldQANeeds:
		return a.QANeeds
	case model.FieldQACar:
		return a.QACar
	case model.FieldQAPolicy:
		return a.QAPolicy
	case model.FieldQAWechat:
		return a.QAWechat
	case model.FieldQATime:
		return a.QATime
	}
	return nil
}

// setAdvisorQA 按字段名写入专员质检子项
func setAdvisorQA(rec *model.AdvisorRecord, field string, v *float64) {
	switch field {
	case model.FieldQATotal:
		rec.QATotal = v
	case model.FieldQA60s:
		rec.QA60s = v
	case model.FieldQANeeds:
		rec.QANeeds = v
	case model.FieldQACar:
		rec.QACar = v
	case model.FieldQAPolicy:
		rec.QAPolicy = v
	case model.FieldQAWechat:
		rec.QAWechat = v
	case model.FieldQATime:
		rec.QATime = v
	}
}

// setStoreQA 按字段名写入门店质检子项
func setStoreQA(rec *model.StoreRecord, field string, v *float64) {
	switch field {
	case model.FieldQATotal:
		rec.QATotal = v
	case model.FieldQA60s:
		rec.QA60s = v
	case model.FieldQANeeds:
		rec.QANeeds = v
	case model.FieldQACar:
		rec.QACar = v
	case model.FieldQAPolicy:
		rec.QAPolicy = v
	case model.FieldQAWechat:
		rec.QAWechat = v
	case model.FieldQATime:
		rec.QATime = v
	}
}

// indexByAdvisor 专员名 -> 首个行下标
func indexByAdvisor(t *model.NormalizedTable) map[string]int {
	idx := make(map[string]int, t.Len())
	for i := 0; i < t.Len(); i++ {
		key := NormalizeKey(t.Labels[i][model.FieldAdvisorName])
		if key == "" {
			continue
		}
		if _, ok := idx[key]; !ok {
			idx[key] = i
		}
	}
	return idx
}

// indexByStore 门店名 -> 首个行下标
func indexByStore(t *model.NormalizedTable) map[string]int {
	idx := make(map[string]int, t.Len())
	for i := 0; i < t.Len(); i++ {
		key := NormalizeKey(t.Labels[i][model.FieldStoreName])
		if key == "" {
			continue
		}
		if _, ok := idx[key]; !ok {
			idx[key] = i
		}
	}
	return idx
}

// indexCall 外呼表索引。逐行判定：门店格非空的行用（门店+专员）复合键，
// 门店格空缺的行退回专员键，保证混排的表里两类行都可达。
// 查找方先试复合键，未命中再试专员键。
func indexCall(t *model.NormalizedTable) map[string]int {
	idx := make(map[string]int, t.Len())
	for i := 0; i < t.Len(); i++ {
		advisor := t.Labels[i][model.FieldAdvisorName]
		if NormalizeKey(advisor) == "" {
			continue
		}
		key := NormalizeKey(advisor)
		if NormalizeKey(t.Labels[i][model.FieldStoreName]) != "" {
			key = joinKey(t.Labels[i][model.FieldStoreName], advisor)
		}
		if _, ok := idx[key]; !ok {
			idx[key] = i
		}
	}
	return idx
}

// tableHasStoreLabels 表里是否带门店标签（列解析到且存在非空值），
// 决定门店级外呼汇总走直接分组还是经由专员归店
func tableHasStoreLabels(t *model.NormalizedTable) bool {
	for i := 0; i < t.Len(); i++ {
		if NormalizeKey(t.Labels[i][model.FieldStoreName]) != "" {
			return true
		}
	}
	return false
}

func orUnknown(s string) string {
	if NormalizeKey(s) == "" {
		return model.UnknownAttribution
	}
	return s
}
