package metrics

import "strconv"

// Label 指标标签
//
// 标签值应保持低基数：action 名称、策略名称可以，请求 ID、节点 ID 不行。
type Label struct {
	Key   string
	Value string
}

// L 便捷构造函数
func L(key, value string) Label {
	return Label{Key: key, Value: value}
}

const (
	LabelService     = "service"
	LabelOperation   = "operation"
	LabelMethod      = "method"
	LabelRoute       = "route"
	LabelStatusClass = "status_class"
	LabelOutcome     = "outcome"
)

const (
	OperationHTTPServer = "http.server"
)

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// UnknownRoute 未命中路由时使用的标签值，避免原始 URL 进入标签
const UnknownRoute = "unknown"

// HTTPStatusClass 返回 1xx/2xx/3xx/4xx/5xx/unknown
func HTTPStatusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}

// HTTPOutcome 2xx/3xx 视为成功
func HTTPOutcome(status int) string {
	if status >= 200 && status < 400 {
		return OutcomeSuccess
	}
	return OutcomeError
}
