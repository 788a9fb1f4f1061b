package discovery

import "github.com/ceyewan/meshroute/xerrors"

var (
	// ErrClosed discovery 已关闭
	ErrClosed = xerrors.New("discovery is closed")

	// ErrAlreadyAnnounced 本地节点已经发布过
	ErrAlreadyAnnounced = xerrors.New("node already announced")

	// ErrNotAnnounced 本地节点尚未发布
	ErrNotAnnounced = xerrors.New("node not announced")

	// ErrInvalidNodeInfo 节点描述无效
	ErrInvalidNodeInfo = xerrors.New("invalid node info")

	// ErrInvalidTTL 无效的租约时长
	ErrInvalidTTL = xerrors.New("invalid ttl")

	// ErrAlreadyStarted Start 只能调用一次
	ErrAlreadyStarted = xerrors.New("discovery already started")
)
