package model

// 统一口径字段名。所有数据源经过字段映射后只使用这一套名字。
const (
	FieldStoreName   = "store_name"
	FieldAdvisorName = "advisor_name"

	// 漏斗
	FieldLeadCount  = "lead_count"
	FieldVisitCount = "visit_count"
	FieldVisitRate  = "visit_rate"

	// 质检
	FieldQATotal  = "qa_total"
	FieldQA60s    = "qa_60s"
	FieldQANeeds  = "qa_needs"
	FieldQACar    = "qa_car"
	FieldQAPolicy = "qa_policy"
	FieldQAWechat = "qa_wechat"
	FieldQATime   = "qa_time"

	// 外呼跟进
	FieldCallDuration  = "call_duration"
	FieldConnectedNum  = "connected_num"
	FieldConnectedDen  = "connected_den"
	FieldTimelyNum     = "timely_num"
	FieldTimelyDen     = "timely_den"
	FieldRecall2Num    = "recall2_num"
	FieldRecall2Den    = "recall2_den"
	FieldRecall3Num    = "recall3_num"
	FieldRecall3Den    = "recall3_den"
	FieldConnectedRate = "connected_rate"
	FieldTimelyRate    = "timely_rate"
	FieldRecall2Rate   = "recall2_rate"
	FieldRecall3Rate   = "recall3_rate"

	// 归属
	FieldRegionManager = "region_manager"
	FieldProvince      = "province"
	FieldCity          = "city"
)

// QAFields 质检子项字段（专员级与门店级同名）
var QAFields = []string{
	FieldQATotal,
	FieldQA60s,
	FieldQANeeds,
	FieldQACar,
	FieldQAPolicy,
	FieldQAWechat,
	FieldQATime,
}

// CallRatioField 外呼比例字段与分子/分母的对应关系
type CallRatioField struct {
	Rate string
	Num  string
	Den  string
}

// CallRatioFields 四个外呼比例口径
var CallRatioFields = []CallRatioField{
	{FieldConnectedRate, FieldConnectedNum, FieldConnectedDen},
	{FieldTimelyRate, FieldTimelyNum, FieldTimelyDen},
	{FieldRecall2Rate, FieldRecall2Num, FieldRecall2Den},
	{FieldRecall3Rate, FieldRecall3Num, FieldRecall3Den},
}

// UnknownAttribution 归属缺失时的占位值（保证级联筛选语义完整）
const UnknownAttribution = "未知"

// AdvisorRecord 对账后的专员行。质检/外呼比例字段用指针表达
// “本期未被抽检”这类有意义的缺失，下游求均值时据此剔除。
type AdvisorRecord struct {
	StoreName   string `json:"storeName"`
	AdvisorName string `json:"advisorName"`

	LeadCount  float64 `json:"leadCount"`
	VisitCount float64 `json:"visitCount"`
	VisitRate  float64 `json:"visitRate"`

	QATotal  *float64 `json:"qaTotal"`
	QA60s    *float64 `json:"qa60s"`
	QANeeds  *float64 `json:"qaNeeds"`
	QACar    *float64 `json:"qaCar"`
	QAPolicy *float64 `json:"qaPolicy"`
	QAWechat *float64 `json:"qaWechat"`
	QATime   *float64 `json:"qaTime"`

	CallDuration  float64  `json:"callDuration"`
	ConnectedNum  float64  `json:"connectedNum"`
	ConnectedDen  float64  `json:"connectedDen"`
	TimelyNum     float64  `json:"timelyNum"`
	TimelyDen     float64  `json:"timelyDen"`
	Recall2Num    float64  `json:"recall2Num"`
	Recall2Den    float64  `json:"recall2Den"`
	Recall3Num    float64  `json:"recall3Num"`
	Recall3Den    float64  `json:"recall3Den"`
	ConnectedRate *float64 `json:"connectedRate"`
	TimelyRate    *float64 `json:"timelyRate"`
	Recall2Rate   *float64 `json:"recall2Rate"`
	Recall3Rate   *float64 `json:"recall3Rate"`

	RegionManager string `json:"regionManager"`
	Province      string `json:"province"`
	City          string `json:"city"`
}

// StoreRecord 对账后的门店行。外呼比例恒由分子/分母汇总后重算，
// 不允许用专员比例的算术平均。
type StoreRecord struct {
	StoreName string `json:"storeName"`

	LeadCount  float64 `json:"leadCount"`
	VisitCount float64 `json:"visitCount"`
	VisitRate  float64 `json:"visitRate"`
	// FromSubtotal 漏斗数值是否采信自原表小计行（否则由专员行求和兜底）
	FromSubtotal bool `json:"fromSubtotal"`

	QATotal  *float64 `json:"qaTotal"`
	QA60s    *float64 `json:"qa60s"`
	QANeeds  *float64 `json:"qaNeeds"`
	QACar    *float64 `json:"qaCar"`
	QAPolicy *float64 `json:"qaPolicy"`
	QAWechat *float64 `json:"qaWechat"`
	QATime   *float64 `json:"qaTime"`
	// QAFromStoreRank 门店质检是否采信自门店排名表（否则由专员均值兜底）
	QAFromStoreRank bool `json:"qaFromStoreRank"`

	CallDuration  float64 `json:"callDuration"`
	ConnectedNum  float64 `json:"connectedNum"`
	ConnectedDen  float64 `json:"connectedDen"`
	TimelyNum     float64 `json:"timelyNum"`
	TimelyDen     float64 `json:"timelyDen"`
	Recall2Num    float64 `json:"recall2Num"`
	Recall2Den    float64 `json:"recall2Den"`
	Recall3Num    float64 `json:"recall3Num"`
	Recall3Den    float64 `json:"recall3Den"`
	ConnectedRate float64 `json:"connectedRate"`
	TimelyRate    float64 `json:"timelyRate"`
	Recall2Rate   float64 `json:"recall2Rate"`
	Recall3Rate   float64 `json:"recall3Rate"`

	RegionManager string `json:"regionManager"`
	Province      string `json:"province"`
	City          string `json:"city"`
}

// AdvisorTable 专员明细表（稳定排序：门店名、专员名）
type AdvisorTable struct {
	Records []*AdvisorRecord `json:"records"`
}

// StoreTable 门店汇总表（稳定排序：门店名）
type StoreTable struct {
	Records []*StoreRecord `json:"records"`
}

// Float 便捷构造 *float64
func Float(v float64) *float64 {
	return &v
}
