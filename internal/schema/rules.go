package schema

import "github.com/doriyyds-dori/dcc-dashboard/internal/model"

// FieldRule 单个统一口径字段的匹配规则。
// 匹配优先级：历史列名精确匹配 > 关键词包含（受排除词约束）> 位置兜底。
type FieldRule struct {
	Field    string   // 统一口径字段名
	Exact    []string // 历史上出现过的列名，精确匹配
	Keywords []string // 列名包含任一关键词即命中
	Exclude  []string // 列名同时包含这些词时取消关键词命中（语义相近但口径不同）
	Position int      // 位置兜底列下标，-1 表示不兜底
	Required bool     // 无法解析时是否致命
}

// rulesBySource 各数据源的规则表。规则是显式声明的策略对象，
// 口径调整只改这里，不动解析逻辑。
var rulesBySource = map[model.SourceType][]FieldRule{
	model.SourceTypeFunnel: {
		{
			Field:    model.FieldStoreName,
			Exact:    []string{"门店", "门店名称", "专卖店"},
			Keywords: []string{"门店", "店名", "经销商", "专卖店"},
			Position: 0,
			Required: true,
		},
		{
			Field:    model.FieldAdvisorName,
			Exact:    []string{"邀约专员", "管家", "DCC专员"},
			Keywords: []string{"专员", "管家", "顾问", "姓名"},
			Position: 1,
			Required: true,
		},
		{
			Field:    model.FieldLeadCount,
			Exact:    []string{"线索量", "线索数", "留资量"},
			Keywords: []string{"线索", "留资"},
			Exclude:  []string{"率"},
			Position: -1,
		},
		{
			Field:    model.FieldVisitCount,
			Exact:    []string{"到店量", "到店数"},
			Keywords: []string{"到店"},
			Exclude:  []string{"率"},
			Position: -1,
		},
		{
			Field:    model.FieldVisitRate,
			Exact:    []string{"到店率", "邀约到店率"},
			Keywords: []string{"到店率", "率"},
			// 试驾率/成交率与到店率语义完全不同，必须排除
			Exclude:  []string{"试驾", "成交"},
			Position: -1,
		},
	},

	model.SourceTypeQA: append([]FieldRule{
		{
			Field:    model.FieldAdvisorName,
			Exact:    []string{"邀约专员", "管家", "被检人"},
			Keywords: []string{"专员", "管家", "顾问", "姓名"},
			Position: 0,
			Required: true,
		},
		{
			// 质检表可以只按专员维度对账，门店名缺失可容忍
			Field:    model.FieldStoreName,
			Exact:    []string{"门店", "门店名称"},
			Keywords: []string{"门店", "店名"},
			Position: -1,
		},
	}, qaScoreRules()...),

	model.SourceTypeCallMetrics: {
		{
			Field:    model.FieldAdvisorName,
			Exact:    []string{"邀约专员", "管家"},
			Keywords: []string{"专员", "管家", "顾问", "姓名"},
			Position: 0,
			Required: true,
		},
		{
			Field:    model.FieldStoreName,
			Exact:    []string{"门店", "门店名称"},
			Keywords: []string{"门店", "店名"},
			Position: -1,
		},
		{
			Field:    model.FieldCallDuration,
			Exact:    []string{"通话时长", "总通话时长"},
			Keywords: []string{"时长"},
			Position: -1,
		},
		{
			Field:    model.FieldConnectedNum,
			Exact:    []string{"接通量", "接通数"},
			Keywords: []string{"接通"},
			Exclude:  []string{"率", "未"},
			Position: -1,
		},
		{
			Field:    model.FieldConnectedDen,
			Exact:    []string{"外呼量", "拨打量"},
			Keywords: []string{"外呼", "拨打", "呼出"},
			Exclude:  []string{"率"},
			Position: -1,
		},
		{
			Field:    model.FieldTimelyNum,
			Exact:    []string{"及时跟进量", "及时跟进线索量"},
			Keywords: []string{"及时"},
			Exclude:  []string{"率"},
			Position: -1,
		},
		{
			Field:    model.FieldTimelyDen,
			Exact:    []string{"应跟进量", "应跟进线索量"},
			Keywords: []string{"应跟进", "需跟进"},
			Exclude:  []string{"率"},
			Position: -1,
		},
		{
			Field:    model.FieldRecall2Num,
			Exact:    []string{"2次跟进量", "二次跟进量"},
			Keywords: []string{"2次跟进", "二次跟进"},
			Exclude:  []string{"率", "应"},
			Position: -1,
		},
		{
			Field:    model.FieldRecall2Den,
			Exact:    []string{"2次应跟进量", "二次应跟进量"},
			Keywords: []string{"2次应", "二次应"},
			Exclude:  []string{"率"},
			Position: -1,
		},
		{
			Field:    model.FieldRecall3Num,
			Exact:    []string{"3次跟进量", "三次跟进量"},
			Keywords: []string{"3次跟进", "三次跟进"},
			Exclude:  []string{"率", "应"},
			Position: -1,
		},
		{
			Field:    model.FieldRecall3Den,
			Exact:    []string{"3次应跟进量", "三次应跟进量"},
			Keywords: []string{"3次应", "三次应"},
			Exclude:  []string{"率"},
			Position: -1,
		},
	},

	model.SourceTypeStoreRank: append([]FieldRule{
		{
			Field:    model.FieldStoreName,
			Exact:    []string{"门店", "门店名称", "专卖店"},
			Keywords: []string{"门店", "店名", "经销商", "专卖店"},
			Position: 0,
			Required: true,
		},
	}, qaScoreRules()...),

	model.SourceTypeAttribution: {
		{
			Field:    model.FieldStoreName,
			Exact:    []string{"门店", "门店名称"},
			Keywords: []string{"门店", "店名", "经销商"},
			Position: 0,
			Required: true,
		},
		{
			Field:    model.FieldRegionManager,
			Exact:    []string{"大区经理", "区域经理"},
			Keywords: []string{"大区", "区域"},
			Position: -1,
		},
		{
			Field:    model.FieldProvince,
			Exact:    []string{"省份"},
			Keywords: []string{"省"},
			Position: -1,
		},
		{
			Field:    model.FieldCity,
			Exact:    []string{"城市"},
			Keywords: []string{"市"},
			Exclude:  []string{"省"},
			Position: -1,
		},
	},
}

// qaScoreRules 质检子项规则。专员质检表与门店排名表共用同一套口径。
func qaScoreRules() []FieldRule {
	return []FieldRule{
		{
			Field:    model.FieldQATotal,
			Exact:    []string{"总分", "质检总分", "总得分"},
			Keywords: []string{"总分", "总得分"},
			Position: -1,
		},
		{
			Field:    model.FieldQA60s,
			Exact:    []string{"60秒通话占比"},
			Keywords: []string{"60秒", "60s"},
			Position: -1,
		},
		{
			Field:    model.FieldQANeeds,
			Exact:    []string{"需求挖掘"},
			Keywords: []string{"需求"},
			Position: -1,
		},
		{
			Field:    model.FieldQACar,
			Exact:    []string{"车型介绍"},
			Keywords: []string{"车型", "介绍车"},
			Position: -1,
		},
		{
			Field:    model.FieldQAPolicy,
			Exact:    []string{"政策应用", "活动政策"},
			Keywords: []string{"政策", "活动"},
			Position: -1,
		},
		{
			Field:    model.FieldQAWechat,
			Exact:    []string{"添加微信", "加微"},
			Keywords: []string{"微信", "加微"},
			Position: -1,
		},
		{
			Field:    model.FieldQATime,
			Exact:    []string{"到店时间确认"},
			Keywords: []string{"时间"},
			Exclude:  []string{"时长"},
			Position: -1,
		},
	}
}

// RulesFor 返回某数据源的规则表（未知数据源返回 nil）
func RulesFor(source model.SourceType) []FieldRule {
	return rulesBySource[source]
}
