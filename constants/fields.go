package constants

// FileNameField is the column that records which PDF a row came from.
const FileNameField = "ファイル名"

// ExportSheetName and ExportFileName name the comparison workbook.
const (
	ExportSheetName = "見積情報比較表"
	ExportFileName  = "見積情報比較表.xlsx"
)

var defaultFields = []string{
	"氏名",
	"生年月日",
	"保険会社名",
	"保険期間",
	"保険金額",
	"補償内容",
}

// DefaultFields returns a fresh copy of the built-in extraction fields.
func DefaultFields() []string {
	out := make([]string, len(defaultFields))
	copy(out, defaultFields)
	return out
}

// IsFileNameField reports whether name is the reserved file-name column.
func IsFileNameField(name string) bool {
	return name == FileNameField
}
