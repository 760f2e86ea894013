package server

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/quote-compare/constants"
	"github.com/joseph-ayodele/quote-compare/internal/common"
	"github.com/joseph-ayodele/quote-compare/internal/repository"
)

func (s *Server) getTable(c *gin.Context) {
	st := currentSession(c)
	c.JSON(http.StatusOK, viewTable(st.Table(), st.Fields()))
}

func (s *Server) exportXLSX(c *gin.Context) {
	st := currentSession(c)
	table := st.Table()
	if table.Len() == 0 {
		abortWithError(c, http.StatusNotFound, "EMPTY_TABLE", "エクスポートするデータがありません", nil)
		return
	}
	b, err := s.Export.WriteXLSX(table, st.Fields())
	if err != nil {
		s.Logger.Error("export.xlsx.failed", "session_id", st.ID, "error", err)
		respondError(c, err, "Excelの出力に失敗しました")
		return
	}
	c.Header("Content-Disposition",
		`attachment; filename="quotes.xlsx"; filename*=UTF-8''`+url.PathEscape(constants.ExportFileName))
	c.Data(http.StatusOK, constants.MIMEXLSX, b)
}

func (s *Server) listJobs(c *gin.Context) {
	st := currentSession(c)
	if s.Jobs == nil {
		c.JSON(http.StatusOK, gin.H{"jobs": []repository.ExtractJob{}})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if v := common.NewValidator().Field("limit", limit, common.NonNegative); v.HasErrors() {
		respondError(c, v.Error(), "limit は0以上を指定してください")
		return
	}
	jobs, err := s.Jobs.ListBySession(c.Request.Context(), st.ID, limit)
	if err != nil {
		respondError(c, err, "処理履歴を取得できませんでした")
		return
	}
	if jobs == nil {
		jobs = []repository.ExtractJob{}
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}
