package ingest

import (
	"fmt"
	"regexp"
	"strings"
)

// 表头识别关键词。只要某行任一单元格包含任一关键词即判定为表头行。
var headerKeywords = []string{
	"门店", "店名", "专卖店", "经销商",
	"专员", "管家", "顾问", "姓名",
	"线索", "留资", "到店",
	"质检", "评分", "总分",
	"排名", "序号",
	"大区", "省份", "城市",
	"通话", "接通",
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// DetectHeaderRow 在前 scanRows 行内定位表头行，返回行下标；找不到返回 -1。
// 排名类文件常带多行标题，调用方应传入更大的扫描窗口。
func DetectHeaderRow(rows [][]string, scanRows int) int {
	if scanRows > len(rows) {
		scanRows = len(rows)
	}
	for i := 0; i < scanRows; i++ {
		for _, cell := range rows[i] {
			cell = NormalizeHeaderName(cell)
			if cell == "" {
				continue
			}
			for _, kw := range headerKeywords {
				if strings.Contains(cell, kw) {
					return i
				}
			}
		}
	}
	return -1
}

// NormalizeHeaderName 规范化列名：去首尾空白、去换行/回车/制表符、压缩空白
func NormalizeHeaderName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "\n", "")
	name = strings.ReplaceAll(name, "\r", "")
	name = strings.ReplaceAll(name, "\t", "")
	return whitespaceRe.ReplaceAllString(name, "")
}

// DeduplicateHeaders 列名去重：首次出现保留原名，重复出现追加数字后缀
// name / name__1 / name__2，保持原始列序。任何重命名步骤之后若可能
// 再次引入重名，需要重新执行一遍。
func DeduplicateHeaders(headers []string) []string {
	seen := make(map[string]int, len(headers))
	out := make([]string, len(headers))
	for i, h := range headers {
		n, ok := seen[h]
		if !ok {
			seen[h] = 0
			out[i] = h
			continue
		}
		seen[h] = n + 1
		out[i] = fmt.Sprintf("%s__%d", h, n+1)
	}
	return out
}

// BaseHeaderName 去掉去重后缀，还原原始列名
func BaseHeaderName(name string) string {
	if idx := strings.LastIndex(name, "__"); idx > 0 {
		suffix := name[idx+2:]
		if suffix != "" && strings.Trim(suffix, "0123456789") == "" {
			return name[:idx]
		}
	}
	return name
}

// IsDroppableHeader 列名为空或字面 nan 的列整列丢弃
func IsDroppableHeader(name string) bool {
	if name == "" {
		return true
	}
	return strings.EqualFold(name, "nan")
}
