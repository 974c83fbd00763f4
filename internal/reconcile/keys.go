package reconcile

import (
	"strings"
)

// NormalizeKey 连接键归一化：去首尾空白、压掉内部空白（含全角空格）、
// 大小写折叠。各数据源里的同一人/同一店写法不一，连接前统一到这套口径。
func NormalizeKey(name string) string {
	name = strings.ReplaceAll(name, "　", " ")
	fields := strings.Fields(name)
	return strings.ToLower(strings.Join(fields, ""))
}

// joinKey 复合连接键（门店 + 专员）
func joinKey(store, advisor string) string {
	return NormalizeKey(store) + "\x00" + NormalizeKey(advisor)
}
