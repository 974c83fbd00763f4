package reconcile

import (
	"bytes"
	"encoding/json"
	"math"
	"testing"

	"github.com/doriyyds-dori/dcc-dashboard/internal/model"
)

// 构造归一化表的测试辅助
type tableRow struct {
	labels map[string]string
	values map[string]float64
}

func buildTable(source model.SourceType, rows ...tableRow) *model.NormalizedTable {
	t := model.NewNormalizedTable(source, nil)
	for _, r := range rows {
		labels := r.labels
		if labels == nil {
			labels = map[string]string{}
		}
		values := r.values
		if values == nil {
			values = map[string]float64{}
		}
		t.Append(labels, values)
	}
	return t
}

func advisorRow(store, advisor string, lead, visit float64) tableRow {
	return tableRow{
		labels: map[string]string{model.FieldStoreName: store, model.FieldAdvisorName: advisor},
		values: map[string]float64{model.FieldLeadCount: lead, model.FieldVisitCount: visit},
	}
}

func emptyInputs() Inputs {
	return Inputs{
		FunnelAgg:    buildTable(model.SourceTypeFunnel),
		FunnelDetail: buildTable(model.SourceTypeFunnel),
		QA:           buildTable(model.SourceTypeQA),
		CallMetrics:  buildTable(model.SourceTypeCallMetrics),
		StoreRank:    buildTable(model.SourceTypeStoreRank),
	}
}

func TestReconcile_TrustsSubtotalRow(t *testing.T) {
	t.Parallel()

	in := emptyInputs()
	in.FunnelAgg = buildTable(model.SourceTypeFunnel, tableRow{
		labels: map[string]string{model.FieldStoreName: "StoreA", model.FieldAdvisorName: "小计"},
		values: map[string]float64{model.FieldLeadCount: 120, model.FieldVisitCount: 30},
	})
	in.FunnelDetail = buildTable(model.SourceTypeFunnel,
		advisorRow("StoreA", "AdvX", 80, 20),
		advisorRow("StoreA", "AdvY", 40, 10),
	)

	_, stores, _, err := NewEngine().Reconcile(in)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(stores.Records) != 1 {
		t.Fatalf("store count want=1 got=%d", len(stores.Records))
	}
	st := stores.Records[0]
	if !st.FromSubtotal {
		t.Fatalf("subtotal row must be trusted")
	}
	if st.LeadCount != 120 || st.VisitCount != 30 || st.VisitRate != 0.25 {
		t.Fatalf("unexpected store: lead=%v visit=%v rate=%v", st.LeadCount, st.VisitCount, st.VisitRate)
	}
}

func TestReconcile_DerivesStoreWhenSubtotalMissing(t *testing.T) {
	t.Parallel()

	in := emptyInputs()
	in.FunnelDetail = buildTable(model.SourceTypeFunnel,
		advisorRow("StoreA", "AdvX", 80, 20),
		advisorRow("StoreA", "AdvY", 40, 10),
	)

	_, stores, warnings, err := NewEngine().Reconcile(in)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(stores.Records) != 1 {
		t.Fatalf("store with advisors but no subtotal row must not be dropped")
	}
	st := stores.Records[0]
	if st.FromSubtotal {
		t.Fatalf("fallback store must not claim subtotal origin")
	}
	if st.LeadCount != 120 || st.VisitCount != 30 || st.VisitRate != 0.25 {
		t.Fatalf("unexpected store: lead=%v visit=%v rate=%v", st.LeadCount, st.VisitCount, st.VisitRate)
	}

	found := false
	for _, w := range warnings {
		if w.Kind == model.WarnSubtotalMissing {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing subtotal warning: %v", warnings)
	}
}

func TestReconcile_AdvisorAbsentFromQAKeepsNulls(t *testing.T) {
	t.Parallel()

	in := emptyInputs()
	in.FunnelDetail = buildTable(model.SourceTypeFunnel,
		advisorRow("StoreA", "AdvX", 80, 20),
		advisorRow("StoreA", "AdvY", 40, 10),
	)
	in.QA = buildTable(model.SourceTypeQA, tableRow{
		labels: map[string]string{model.FieldAdvisorName: "AdvX"},
		values: map[string]float64{model.FieldQATotal: 90},
	})

	advisors, stores, _, err := NewEngine().Reconcile(in)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	var advX, advY *model.AdvisorRecord
	for _, a := range advisors.Records {
		switch a.AdvisorName {
		case "AdvX":
			advX = a
		case "AdvY":
			advY = a
		}
	}
	if advX == nil || advX.QATotal == nil || *advX.QATotal != 90 {
		t.Fatalf("AdvX QA total lost")
	}
	// 未抽检是有意义的缺失，不允许坍缩成 0 分
	if advY == nil || advY.QATotal != nil {
		t.Fatalf("AdvY must keep null QA total")
	}

	// 门店均值只算被抽检的专员
	st := stores.Records[0]
	if st.QAFromStoreRank {
		t.Fatalf("no store-rank source, QA must come from advisor mean")
	}
	if st.QATotal == nil || *st.QATotal != 90 {
		t.Fatalf("store QA mean must ignore unscored advisors, got %v", st.QATotal)
	}
}

func TestReconcile_UnresolvedScoreColumnsStayNull(t *testing.T) {
	t.Parallel()

	// 质检表只解析出总分列：命中的专员其余子项必须保持空指针，
	// “列缺失”不允许折算成 0 分再混进门店均值
	in := emptyInputs()
	in.FunnelDetail = buildTable(model.SourceTypeFunnel,
		advisorRow("StoreA", "AdvX", 80, 20),
	)
	in.QA = buildTable(model.SourceTypeQA, tableRow{
		labels: map[string]string{model.FieldAdvisorName: "AdvX"},
		values: map[string]float64{model.FieldQATotal: 90},
	})
	in.CallMetrics = buildTable(model.SourceTypeCallMetrics, tableRow{
		labels: map[string]string{model.FieldAdvisorName: "AdvX"},
		values: map[string]float64{model.FieldConnectedNum: 9, model.FieldConnectedDen: 10},
	})

	advisors, stores, _, err := NewEngine().Reconcile(in)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	adv := advisors.Records[0]
	if adv.QATotal == nil || *adv.QATotal != 90 {
		t.Fatalf("resolved score lost: %v", adv.QATotal)
	}
	if adv.QAWechat != nil || adv.QA60s != nil || adv.QATime != nil {
		t.Fatalf("unresolved score columns must stay null: %+v", adv)
	}
	if adv.ConnectedRate == nil || *adv.ConnectedRate != 0.9 {
		t.Fatalf("connected rate want=0.9 got=%v", adv.ConnectedRate)
	}
	if adv.Recall2Rate != nil || adv.Recall3Rate != nil {
		t.Fatalf("unresolved call ratio columns must stay null: %+v", adv)
	}

	st := stores.Records[0]
	if st.QATotal == nil || *st.QATotal != 90 {
		t.Fatalf("store mean over resolved scores lost: %v", st.QATotal)
	}
	if st.QAWechat != nil {
		t.Fatalf("store mean over unresolved scores must stay null, got %v", *st.QAWechat)
	}
}

func TestReconcile_StoreRankUnresolvedColumnsStayNull(t *testing.T) {
	t.Parallel()

	in := emptyInputs()
	in.FunnelDetail = buildTable(model.SourceTypeFunnel, advisorRow("StoreA", "AdvX", 80, 20))
	in.StoreRank = buildTable(model.SourceTypeStoreRank, tableRow{
		labels: map[string]string{model.FieldStoreName: "StoreA"},
		values: map[string]float64{model.FieldQATotal: 95},
	})

	_, stores, _, err := NewEngine().Reconcile(in)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	st := stores.Records[0]
	if !st.QAFromStoreRank || st.QATotal == nil || *st.QATotal != 95 {
		t.Fatalf("rank total lost: %+v", st)
	}
	if st.QAWechat != nil || st.QATime != nil {
		t.Fatalf("rank source without sub-score columns must leave them null: %+v", st)
	}
}

func TestReconcile_StoreRankPreferredOverAdvisorMean(t *testing.T) {
	t.Parallel()

	in := emptyInputs()
	in.FunnelDetail = buildTable(model.SourceTypeFunnel, advisorRow("StoreA", "AdvX", 80, 20))
	in.QA = buildTable(model.SourceTypeQA, tableRow{
		labels: map[string]string{model.FieldAdvisorName: "AdvX"},
		values: map[string]float64{model.FieldQATotal: 70},
	})
	in.StoreRank = buildTable(model.SourceTypeStoreRank, tableRow{
		labels: map[string]string{model.FieldStoreName: "StoreA"},
		values: map[string]float64{model.FieldQATotal: 95},
	})

	_, stores, _, err := NewEngine().Reconcile(in)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	st := stores.Records[0]
	if !st.QAFromStoreRank || st.QATotal == nil || *st.QATotal != 95 {
		t.Fatalf("store-rank source must win when present: %+v", st)
	}
}

func TestReconcile_WeightedRatioNotMeanOfRatios(t *testing.T) {
	t.Parallel()

	in := emptyInputs()
	in.FunnelDetail = buildTable(model.SourceTypeFunnel,
		advisorRow("StoreA", "AdvX", 80, 20),
		advisorRow("StoreA", "AdvY", 40, 10),
	)
	in.CallMetrics = buildTable(model.SourceTypeCallMetrics,
		tableRow{
			labels: map[string]string{model.FieldAdvisorName: "AdvX"},
			values: map[string]float64{model.FieldConnectedNum: 90, model.FieldConnectedDen: 100},
		},
		tableRow{
			labels: map[string]string{model.FieldAdvisorName: "AdvY"},
			values: map[string]float64{model.FieldConnectedNum: 1, model.FieldConnectedDen: 2},
		},
	)

	_, stores, _, err := NewEngine().Reconcile(in)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	st := stores.Records[0]

	weighted := 91.0 / 102.0
	mean := (0.9 + 0.5) / 2
	if math.Abs(st.ConnectedRate-weighted) > 1e-12 {
		t.Fatalf("connected rate want=%v got=%v", weighted, st.ConnectedRate)
	}
	// 专员呼叫量不均时，加权口径与比例均值必然不同
	if math.Abs(weighted-mean) < 1e-9 {
		t.Fatalf("test data must distinguish weighted ratio from mean of ratios")
	}
	if st.ConnectedNum != 91 || st.ConnectedDen != 102 {
		t.Fatalf("sums want=91/102 got=%v/%v", st.ConnectedNum, st.ConnectedDen)
	}
}

func TestReconcile_CallMetricsJoinByStoreAndAdvisor(t *testing.T) {
	t.Parallel()

	// 两家店同名专员：外呼表带门店列时必须按（门店+专员）连接
	in := emptyInputs()
	in.FunnelDetail = buildTable(model.SourceTypeFunnel,
		advisorRow("StoreA", "张三", 80, 20),
		advisorRow("StoreB", "张三", 40, 10),
	)
	in.CallMetrics = buildTable(model.SourceTypeCallMetrics,
		tableRow{
			labels: map[string]string{model.FieldStoreName: "StoreA", model.FieldAdvisorName: "张三"},
			values: map[string]float64{model.FieldConnectedNum: 10, model.FieldConnectedDen: 20},
		},
		tableRow{
			labels: map[string]string{model.FieldStoreName: "StoreB", model.FieldAdvisorName: "张三"},
			values: map[string]float64{model.FieldConnectedNum: 5, model.FieldConnectedDen: 5},
		},
	)

	advisors, _, _, err := NewEngine().Reconcile(in)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	for _, a := range advisors.Records {
		switch a.StoreName {
		case "StoreA":
			if a.ConnectedNum != 10 {
				t.Fatalf("StoreA 张三 connected want=10 got=%v", a.ConnectedNum)
			}
		case "StoreB":
			if a.ConnectedNum != 5 {
				t.Fatalf("StoreB 张三 connected want=5 got=%v", a.ConnectedNum)
			}
		}
	}
}

func TestReconcile_CallRowsWithoutStoreStillJoin(t *testing.T) {
	t.Parallel()

	// 外呼表门店列只有部分行有值：带门店的行按复合键连接，
	// 门店格空缺的行退回专员键，不允许变成孤行
	in := emptyInputs()
	in.FunnelDetail = buildTable(model.SourceTypeFunnel,
		advisorRow("StoreA", "AdvX", 80, 20),
		advisorRow("StoreA", "AdvY", 40, 10),
	)
	in.CallMetrics = buildTable(model.SourceTypeCallMetrics,
		tableRow{
			labels: map[string]string{model.FieldStoreName: "StoreA", model.FieldAdvisorName: "AdvX"},
			values: map[string]float64{model.FieldConnectedNum: 90, model.FieldConnectedDen: 100},
		},
		tableRow{
			labels: map[string]string{model.FieldStoreName: "", model.FieldAdvisorName: "AdvY"},
			values: map[string]float64{model.FieldConnectedNum: 1, model.FieldConnectedDen: 2},
		},
	)

	advisors, stores, _, err := NewEngine().Reconcile(in)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	for _, a := range advisors.Records {
		switch a.AdvisorName {
		case "AdvX":
			if a.ConnectedNum != 90 {
				t.Fatalf("AdvX connected want=90 got=%v", a.ConnectedNum)
			}
		case "AdvY":
			if a.ConnectedNum != 1 {
				t.Fatalf("AdvY row without store label must still join, got %v", a.ConnectedNum)
			}
		}
	}

	// 门店汇总也不得丢掉门店格空缺的行
	st := stores.Records[0]
	if st.ConnectedNum != 91 || st.ConnectedDen != 102 {
		t.Fatalf("store sums want=91/102 got=%v/%v", st.ConnectedNum, st.ConnectedDen)
	}
}

func TestReconcile_AttributionMissingDegrades(t *testing.T) {
	t.Parallel()

	in := emptyInputs()
	in.FunnelDetail = buildTable(model.SourceTypeFunnel, advisorRow("StoreA", "AdvX", 80, 20))

	advisors, stores, warnings, err := NewEngine().Reconcile(in)
	if err != nil {
		t.Fatalf("attribution missing must not be fatal: %v", err)
	}
	adv := advisors.Records[0]
	if adv.RegionManager != model.UnknownAttribution || adv.Province != model.UnknownAttribution || adv.City != model.UnknownAttribution {
		t.Fatalf("advisor attribution want=%s got=%+v", model.UnknownAttribution, adv)
	}
	if stores.Records[0].Province != model.UnknownAttribution {
		t.Fatalf("store attribution want=%s", model.UnknownAttribution)
	}

	found := false
	for _, w := range warnings {
		if w.Kind == model.WarnAttributionMissing {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing attribution warning: %v", warnings)
	}
}

func TestReconcile_AttributionEnrichment(t *testing.T) {
	t.Parallel()

	in := emptyInputs()
	in.FunnelDetail = buildTable(model.SourceTypeFunnel,
		advisorRow("StoreA", "AdvX", 80, 20),
		advisorRow("StoreB", "AdvY", 40, 10),
	)
	in.Attribution = buildTable(model.SourceTypeAttribution, tableRow{
		labels: map[string]string{
			model.FieldStoreName:     " storea ", // 连接键归一化后命中
			model.FieldRegionManager: "王经理",
			model.FieldProvince:      "浙江",
			model.FieldCity:          "杭州",
		},
	})

	_, stores, _, err := NewEngine().Reconcile(in)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	for _, st := range stores.Records {
		switch st.StoreName {
		case "StoreA":
			if st.Province != "浙江" || st.City != "杭州" || st.RegionManager != "王经理" {
				t.Fatalf("StoreA attribution lost: %+v", st)
			}
		case "StoreB":
			if st.Province != model.UnknownAttribution {
				t.Fatalf("unmatched store must default to %s", model.UnknownAttribution)
			}
		}
	}
}

func TestReconcile_Deterministic(t *testing.T) {
	t.Parallel()

	in := emptyInputs()
	in.FunnelDetail = buildTable(model.SourceTypeFunnel,
		advisorRow("StoreB", "AdvB", 10, 5),
		advisorRow("StoreA", "AdvZ", 80, 20),
		advisorRow("StoreA", "AdvA", 40, 10),
	)
	in.QA = buildTable(model.SourceTypeQA, tableRow{
		labels: map[string]string{model.FieldAdvisorName: "AdvA"},
		values: map[string]float64{model.FieldQATotal: 88},
	})

	run := func() []byte {
		advisors, stores, _, err := NewEngine().Reconcile(in)
		if err != nil {
			t.Fatalf("reconcile: %v", err)
		}
		a, err := json.Marshal(advisors)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		s, err := json.Marshal(stores)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		return append(a, s...)
	}

	first := run()
	for i := 0; i < 10; i++ {
		if !bytes.Equal(first, run()) {
			t.Fatalf("reconcile output not byte-identical across runs")
		}
	}

	// 稳定排序：门店名、专员名
	advisors, _, _, _ := NewEngine().Reconcile(in)
	names := []string{}
	for _, a := range advisors.Records {
		names = append(names, a.StoreName+"/"+a.AdvisorName)
	}
	want := []string{"StoreA/AdvA", "StoreA/AdvZ", "StoreB/AdvB"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("order want=%v got=%v", want, names)
		}
	}
}

func TestNormalizeKey(t *testing.T) {
	t.Parallel()

	if NormalizeKey(" 张 三 ") != NormalizeKey("张三") {
		t.Fatalf("internal whitespace must collapse")
	}
	if NormalizeKey("StoreA") != NormalizeKey(" storea ") {
		t.Fatalf("case folding failed")
	}
	if NormalizeKey("张　三") != NormalizeKey("张三") {
		t.Fatalf("full-width space must collapse")
	}
}
