package heartbeat

import "github.com/ceyewan/meshroute/xerrors"

var (
	// ErrInvalidBeat 心跳消息无法解码或字段无效
	ErrInvalidBeat = xerrors.New("invalid heartbeat")

	// ErrSampleFailed CPU 采样失败
	ErrSampleFailed = xerrors.New("cpu sample failed")

	// ErrAlreadyStarted 订阅已经启动
	ErrAlreadyStarted = xerrors.New("heartbeat subscriber already started")
)
