package normalize

import (
	"testing"

	"github.com/doriyyds-dori/dcc-dashboard/internal/model"
	"github.com/doriyyds-dori/dcc-dashboard/internal/schema"
)

func resolveTable(t *testing.T, raw *model.RawTable) *schema.Resolution {
	t.Helper()
	res, err := schema.NewResolver().Resolve(raw)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return res
}

func TestBuildFunnelTables_SplitsAggregateAndDetail(t *testing.T) {
	t.Parallel()

	raw := &model.RawTable{
		Source:  model.SourceTypeFunnel,
		Path:    "funnel.csv",
		Headers: []string{"门店", "邀约专员", "线索量", "到店量", "到店率"},
		Rows: [][]string{
			{"A店", "小计", "120", "30", "25%"},
			{"A店", "张三", "80", "20", "25%"},
			{"A店", "-", "", "", ""},
			{"A店", "李四", "40", "10", "25%"},
		},
	}

	agg, detail, _ := BuildFunnelTables(raw, resolveTable(t, raw))
	if agg.Len() != 1 || detail.Len() != 2 {
		t.Fatalf("agg=%d detail=%d", agg.Len(), detail.Len())
	}
	// 比例列按整列口径归一：25% -> 0.25
	if got := agg.Rows[0][model.FieldVisitRate]; got != 0.25 {
		t.Fatalf("agg visit_rate want=0.25 got=%v", got)
	}
	if got := detail.Rows[1][model.FieldVisitRate]; got != 0.25 {
		t.Fatalf("detail visit_rate want=0.25 got=%v", got)
	}
	if detail.Labels[0][model.FieldAdvisorName] != "张三" {
		t.Fatalf("unexpected detail labels: %v", detail.Labels)
	}
}

func TestBuildTable_CollisionWarning(t *testing.T) {
	t.Parallel()

	raw := &model.RawTable{
		Source:  model.SourceTypeQA,
		Path:    "qa.csv",
		Headers: []string{"邀约专员", "添加微信", "添加微信__1"},
		Rows: [][]string{
			{"张三", "", "5"},
			{"李四", "3", "9"},
		},
	}

	table, warnings := BuildTable(raw, resolveTable(t, raw))
	if table.Len() != 2 {
		t.Fatalf("rows want=2 got=%d", table.Len())
	}
	// 首个非空值优先，第一候选为空时从后续候选回填
	if got := table.Rows[0][model.FieldQAWechat]; got != 5 {
		t.Fatalf("row0 qa_wechat want=5 got=%v", got)
	}
	if got := table.Rows[1][model.FieldQAWechat]; got != 3 {
		t.Fatalf("row1 qa_wechat want=3 got=%v", got)
	}

	found := false
	for _, w := range warnings {
		if w.Kind == model.WarnCollisionCollapsed && w.Field == model.FieldQAWechat {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing collision warning: %v", warnings)
	}
}

func TestBuildTable_NegativeCountDefaulted(t *testing.T) {
	t.Parallel()

	raw := &model.RawTable{
		Source:  model.SourceTypeFunnel,
		Path:    "funnel.csv",
		Headers: []string{"门店", "邀约专员", "线索量", "到店量"},
		Rows: [][]string{
			{"A店", "张三", "-5", "20"},
		},
	}

	table, warnings := BuildTable(raw, resolveTable(t, raw))
	// 计数口径不接受负值，归零并记警告
	if got := table.Rows[0][model.FieldLeadCount]; got != 0 {
		t.Fatalf("negative count must default to 0, got=%v", got)
	}
	if got := table.Rows[0][model.FieldVisitCount]; got != 20 {
		t.Fatalf("visit_count want=20 got=%v", got)
	}

	found := false
	for _, w := range warnings {
		if w.Kind == model.WarnCoercionDefaulted && w.Field == model.FieldLeadCount {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing coercion warning: %v", warnings)
	}
}

func TestBuildTable_CoercionWarning(t *testing.T) {
	t.Parallel()

	raw := &model.RawTable{
		Source:  model.SourceTypeQA,
		Path:    "qa.csv",
		Headers: []string{"邀约专员", "总分"},
		Rows: [][]string{
			{"张三", "九十"},
			{"李四", "88"},
		},
	}

	table, warnings := BuildTable(raw, resolveTable(t, raw))
	if got := table.Rows[0][model.FieldQATotal]; got != 0 {
		t.Fatalf("dirty cell must default to 0, got=%v", got)
	}
	if got := table.Rows[1][model.FieldQATotal]; got != 88 {
		t.Fatalf("qa_total want=88 got=%v", got)
	}

	found := false
	for _, w := range warnings {
		if w.Kind == model.WarnCoercionDefaulted && w.Field == model.FieldQATotal {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing coercion warning: %v", warnings)
	}
}
