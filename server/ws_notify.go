package server

import (
	"net/http"
	"strings"

	"Sonora/logger"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // 前端可能部署在其他域名
	},
}

// NotificationsHandler 建立通知 WebSocket。
// 浏览器无法给 WebSocket 设置请求头，令牌通过 ?token= 传递
func (h *APIHandler) NotificationsHandler(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "Notifications are disabled")
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		if scheme, t, found := strings.Cut(r.Header.Get("Authorization"), " "); found && strings.EqualFold(scheme, "Bearer") {
			token = t
		}
	}
	if token == "" {
		unauthorized(w)
		return
	}

	user, err := h.authenticate(r.Context(), token)
	if err != nil {
		internalError(w, "[WS] 加载用户失败", err)
		return
	}
	if user == nil || !user.IsActive {
		unauthorized(w)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 已经写好了错误响应
		logger.Warn("[WS] 升级连接失败", logger.Int64("userId", user.ID), logger.ErrorField(err))
		return
	}

	client := h.hub.Attach(user.ID, conn)
	logger.Info("[WS] 通知连接已建立", logger.Int64("userId", user.ID))

	go client.WritePump()
	client.ReadPump()
}
