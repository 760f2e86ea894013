package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/quote-compare/internal/common"
)

type loginResponse struct {
	Username  string          `json:"username"`
	Name      string          `json:"name"`
	SessionID string          `json:"session_id"`
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Notices   []common.Notice `json:"notices"`
}

func (s *Server) login(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")

	name, err := s.Auth.Login(username, password)
	if err != nil {
		msg := "ユーザー名またはパスワードが間違っています。"
		if errors.Is(err, common.ErrInvalidInput) {
			msg = "ユーザー名とパスワードを入力してください。"
		}
		respondError(c, err, msg)
		return
	}

	st := s.Sessions.Create(username, name)
	token, exp, err := s.Auth.Tokens.Issue(st.Username, name, st.ID)
	if err != nil {
		s.Sessions.Delete(st.ID)
		respondError(c, err, "ログインに失敗しました")
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.Auth.CookieName(), token, int(time.Until(exp).Seconds()), "/", "", c.Request.TLS != nil, true)
	c.JSON(http.StatusOK, loginResponse{
		Username:  st.Username,
		Name:      name,
		SessionID: st.ID,
		Token:     token,
		ExpiresAt: exp,
		Notices:   []common.Notice{common.Success("ようこそ、" + name + "さん！")},
	})
}

func (s *Server) logout(c *gin.Context) {
	if st := currentSession(c); st != nil {
		s.Sessions.Delete(st.ID)
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.Auth.CookieName(), "", -1, "/", "", c.Request.TLS != nil, true)
	c.JSON(http.StatusOK, gin.H{"notices": []common.Notice{common.Info("ログアウトしました")}})
}
