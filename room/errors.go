package room

import "errors"

// 所有错误都是房间内的局部错误：消息被丢弃，连接保持，其他客户端无感知
var (
	ErrUnknownSession     = errors.New("unknown session")
	ErrUnknownPlayer      = errors.New("unknown player")
	ErrDuplicateSession   = errors.New("duplicate session")
	ErrCapacityExceeded   = errors.New("room capacity exceeded")
	ErrInvalidPayload     = errors.New("invalid payload")
	ErrUnsupportedMessage = errors.New("unsupported message type")
	ErrRoomDisposed       = errors.New("room disposed")
)

// ErrorKind 返回错误对应的分类名，用于日志与指标；无法识别时返回 "other"
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownSession):
		return "unknown_session"
	case errors.Is(err, ErrUnknownPlayer):
		return "unknown_player"
	case errors.Is(err, ErrDuplicateSession):
		return "duplicate_session"
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, ErrInvalidPayload):
		return "invalid_payload"
	case errors.Is(err, ErrUnsupportedMessage):
		return "unsupported_message"
	case errors.Is(err, ErrRoomDisposed):
		return "room_disposed"
	default:
		return "other"
	}
}
