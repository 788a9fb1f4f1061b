package catalog

import "github.com/ceyewan/meshroute/xerrors"

var (
	// ErrEmptyEndpointList 对没有任何端点的列表调用 Select
	ErrEmptyEndpointList = xerrors.New("endpoint list is empty")

	// ErrNoAvailableEndpoint 列表非空但没有可用端点，或策略没有选出端点
	ErrNoAvailableEndpoint = xerrors.New("no available endpoint")

	// ErrStrategyConstruction action 声明的策略无法解析或配置无效，在 Add 时返回
	ErrStrategyConstruction = xerrors.New("strategy construction failed")
)

// 错误码，用于日志与 HTTP 响应
const (
	CodeEmptyEndpointList    = "EMPTY_ENDPOINT_LIST"
	CodeNoAvailableEndpoint  = "NO_AVAILABLE_ENDPOINT"
	CodeStrategyConstruction = "STRATEGY_CONSTRUCTION"
)
