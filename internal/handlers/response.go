package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"giveaway/internal/auth"
	"giveaway/internal/services"
)

type errorText struct {
	status int
	en     string
	ja     string
}

var errorTexts = map[services.Kind]errorText{
	services.KindNotFound: {
		http.StatusNotFound, "The requested resource was not found.", "指定されたデータが見つかりません。",
	},
	services.KindPermissionDenied: {
		http.StatusForbidden, "You do not have permission to perform this action.", "この操作を行う権限がありません。",
	},
	services.KindInvalidState: {
		http.StatusConflict, "The campaign is not in a state that allows this action.", "キャンペーンの状態によりこの操作はできません。",
	},
	services.KindInvalidTransition: {
		http.StatusConflict, "This status change is not allowed.", "このステータスには変更できません。",
	},
	services.KindCapacityExceeded: {
		http.StatusConflict, "The campaign has reached its participant limit.", "参加者数が上限に達しています。",
	},
	services.KindInsufficientParticipants: {
		http.StatusUnprocessableEntity, "There are not enough participants to draw that many winners.", "当選者数に対して参加者が不足しています。",
	},
	services.KindConflict: {
		http.StatusConflict, "The value is already in use.", "この値は既に使用されています。",
	},
	services.KindPersistence: {
		http.StatusInternalServerError, "A temporary error occurred. Please try again.", "一時的なエラーが発生しました。もう一度お試しください。",
	},
	services.KindInvalidInput: {
		http.StatusBadRequest, "The request is invalid.", "リクエストの内容が正しくありません。",
	},
	services.KindUnauthenticated: {
		http.StatusUnauthorized, "Please sign in.", "ログインしてください。",
	},
}

func wantsJapanese(c *gin.Context) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(c.GetHeader("Accept-Language"))), "ja")
}

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

// respondError writes the error envelope for err. Unknown errors are
// reported as persistence failures.
func respondError(c *gin.Context, err error) {
	kind := services.KindOf(err)
	text, ok := errorTexts[kind]
	if !ok {
		kind = services.KindPersistence
		text = errorTexts[kind]
	}

	message := text.en
	if wantsJapanese(c) {
		message = text.ja
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(text.status, gin.H{
		"success": false,
		"error": gin.H{
			"code":      string(kind),
			"message":   message,
			"retryable": kind == services.KindPersistence,
		},
	})
}

func badRequest(c *gin.Context, err error) {
	respondError(c, &services.Error{Kind: services.KindInvalidInput, Op: c.FullPath(), Err: err})
}

// principal returns the authenticated caller or writes 401
func principal(c *gin.Context) (string, bool) {
	id, ok := auth.GetUserID(c)
	if !ok {
		respondError(c, &services.Error{Kind: services.KindUnauthenticated, Op: c.FullPath()})
		return "", false
	}
	return id, true
}
