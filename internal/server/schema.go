package server

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/quote-compare/constants"
	"github.com/joseph-ayodele/quote-compare/internal/common"
	"github.com/joseph-ayodele/quote-compare/internal/fieldschema"
)

type fieldsResponse struct {
	fieldschema.Resolution
	SeedRows int             `json:"seed_rows"`
	Notices  []common.Notice `json:"notices,omitempty"`
}

func (s *Server) getFields(c *gin.Context) {
	st := currentSession(c)
	c.JSON(http.StatusOK, fieldsResponse{Resolution: st.Schema(), SeedRows: st.Table().Len()})
}

// uploadSchema resolves fields from an uploaded workbook. An unreadable
// workbook is not an error for the client: the default fields become active
// and a warning is returned.
func (s *Server) uploadSchema(c *gin.Context) {
	st := currentSession(c)
	fh, err := c.FormFile("file")
	if err != nil {
		respondError(c, fmt.Errorf("%w: file is required", common.ErrInvalidInput), "Excelファイルを選択してください")
		return
	}
	if !constants.IsSchemaExt(filepath.Ext(fh.Filename)) {
		respondError(c, fmt.Errorf("%w: unsupported extension %q", common.ErrInvalidInput, filepath.Ext(fh.Filename)),
			"対応していないファイル形式です (.xlsx)")
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, err, "アップロードファイルを開けませんでした")
		return
	}
	defer f.Close()

	res, err := s.Resolver.Resolve(f)
	st.ApplySchema(res)
	resp := fieldsResponse{Resolution: st.Schema(), SeedRows: st.Table().Len()}
	if err != nil {
		s.Logger.Warn("schema.upload.fallback_default", "file", fh.Filename, "error", err)
		resp.Notices = []common.Notice{common.Warning(fmt.Sprintf("Excelの読み込みに失敗しました。デフォルト項目を使用します: %v", err))}
	} else {
		resp.Notices = []common.Notice{common.Success(fmt.Sprintf("%d項目を読み込みました", len(res.Fields)))}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) resetSchema(c *gin.Context) {
	st := currentSession(c)
	st.ResetSchema()
	c.JSON(http.StatusOK, fieldsResponse{
		Resolution: st.Schema(),
		Notices:    []common.Notice{common.Info("デフォルト項目に戻しました")},
	})
}
