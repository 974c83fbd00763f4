package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/doriyyds-dori/dcc-dashboard/internal/model"
)

// zipSignature 工作簿容器的文件头。扩展名不可信，以文件头判定真实格式。
var zipSignature = []byte{0x50, 0x4B, 0x03, 0x04}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// 表头扫描窗口。排名类文件常带多行标题行，窗口放大。
const (
	DefaultHeaderScanRows = 10
	RankingHeaderScanRows = 30
)

// encodingCandidate 候选文本编码（有界枚举，按序尝试取第一个解码成功者）
type encodingCandidate struct {
	name string
	enc  encoding.Encoding
}

var encodingCandidates = []encodingCandidate{
	{"utf-8", nil}, // nil 表示直接按 UTF-8 校验（含 BOM 剥离）
	{"gb18030", simplifiedchinese.GB18030},
	{"big5", traditionalchinese.Big5},
	{"utf-16le", unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)},
}

// Loader 单文件加载器：识别真实格式与编码，定位表头，产出 RawTable
type Loader struct {
	scanRows int
}

// NewLoader 创建加载器
func NewLoader() *Loader {
	return &Loader{scanRows: DefaultHeaderScanRows}
}

// NewRankingLoader 创建排名类文件加载器（更大的表头扫描窗口）
func NewRankingLoader() *Loader {
	return &Loader{scanRows: RankingHeaderScanRows}
}

// ScanRows 当前表头扫描窗口
func (l *Loader) ScanRows() int {
	return l.scanRows
}

// Load 读取一个来源不可控的文件为 RawTable。
// 失败返回 *IngestError，与“文件合法为空表头可定位”严格区分。
func (l *Loader) Load(path string, source model.SourceType) (*model.RawTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newIngestError(path, source, ReasonNotFound, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, newIngestError(path, source, ReasonEmpty, nil)
	}
	return l.LoadBytes(data, path, source)
}

// LoadBytes 从内存数据加载（上传场景复用）
func (l *Loader) LoadBytes(data []byte, path string, source model.SourceType) (*model.RawTable, error) {
	var rows [][]string
	var err error

	if bytes.HasPrefix(data, zipSignature) {
		rows, err = readWorkbookRows(data)
		if err != nil {
			return nil, newIngestError(path, source, ReasonBadWorkbook, err)
		}
	} else {
		rows, err = readDelimitedRows(data)
		if err != nil {
			return nil, newIngestError(path, source, ReasonUndecodable, err)
		}
	}

	headerIdx := DetectHeaderRow(rows, l.scanRows)
	if headerIdx < 0 {
		return nil, newIngestError(path, source, ReasonNoHeader, nil)
	}

	headers := make([]string, len(rows[headerIdx]))
	for i, h := range rows[headerIdx] {
		headers[i] = NormalizeHeaderName(h)
	}
	headers = DeduplicateHeaders(headers)

	table := &model.RawTable{
		Source:  source,
		Path:    path,
		Headers: headers,
		Rows:    rows[headerIdx+1:],
	}
	dropNullColumns(table)
	return table, nil
}

// readWorkbookRows 工作簿分支：取第一个有数据的 sheet
func readWorkbookRows(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		if len(rows) > 0 {
			return rows, nil
		}
	}
	return nil, errors.New("workbook has no non-empty sheet")
}

// readDelimitedRows 分隔文本分支：按候选编码逐个尝试，取第一个
// 能解码且能切分出行的编码；个别坏行跳过，不让整个文件失败。
func readDelimitedRows(data []byte) ([][]string, error) {
	for _, cand := range encodingCandidates {
		decoded, ok := decodeWith(cand, data)
		if !ok {
			continue
		}
		rows, ok := parseCSV(decoded)
		if ok && len(rows) > 0 {
			return rows, nil
		}
	}
	return nil, errors.New("no candidate encoding produced parseable rows")
}

// decodeWith 按候选编码解码为 UTF-8 文本
func decodeWith(cand encodingCandidate, data []byte) (string, bool) {
	if cand.enc == nil {
		data = bytes.TrimPrefix(data, utf8BOM)
		if !utf8.Valid(data) {
			return "", false
		}
		return string(data), true
	}
	decoded, _, err := transform.Bytes(cand.enc.NewDecoder(), data)
	if err != nil || !utf8.Valid(decoded) {
		return "", false
	}
	// 解码器对非法字节会落入替换符而不报错，视作该候选编码失败
	if bytes.ContainsRune(decoded, utf8.RuneError) {
		return "", false
	}
	return string(decoded), true
}

// parseCSV 宽松解析：不约束每行列数，坏行跳过
func parseCSV(text string) ([][]string, bool) {
	reader := csv.NewReader(bytes.NewBufferString(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				continue // 跳过坏行
			}
			return nil, false
		}
		rows = append(rows, row)
	}
	return rows, true
}

// dropNullColumns 丢弃列名为空或字面 nan 的整列
func dropNullColumns(t *model.RawTable) {
	keep := make([]int, 0, len(t.Headers))
	for i, h := range t.Headers {
		if !IsDroppableHeader(BaseHeaderName(h)) {
			keep = append(keep, i)
		}
	}
	if len(keep) == len(t.Headers) {
		return
	}

	headers := make([]string, len(keep))
	for j, i := range keep {
		headers[j] = t.Headers[i]
	}
	rows := make([][]string, len(t.Rows))
	for r, row := range t.Rows {
		out := make([]string, len(keep))
		for j, i := range keep {
			if i < len(row) {
				out[j] = row[i]
			}
		}
		rows[r] = out
	}
	t.Headers = headers
	t.Rows = rows
}
