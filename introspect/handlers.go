package introspect

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ceyewan/meshroute/catalog"
	"github.com/ceyewan/meshroute/xerrors"
)

// CodeActionNotFound 查询的 action 不在目录中
const CodeActionNotFound = "ACTION_NOT_FOUND"

// NodeSummary 节点表中一个节点的视图
type NodeSummary struct {
	ID        string   `json:"id"`
	Hostname  string   `json:"hostname,omitempty"`
	Local     bool     `json:"local"`
	Reachable bool     `json:"reachable"`
	Degraded  bool     `json:"degraded"`
	Available bool     `json:"available"`
	CPU       *float64 `json:"cpu,omitempty"`
	Samples   int      `json:"samples"`
}

func (s *Server) listActions(c *gin.Context) {
	var opts catalog.ListOptions
	if err := c.ShouldBindQuery(&opts); err != nil {
		writeError(c, http.StatusBadRequest, xerrors.Mark(err, xerrors.ErrInvalidInput))
		return
	}
	c.JSON(http.StatusOK, s.catalog.List(opts))
}

func (s *Server) getAction(c *gin.Context) {
	name := c.Param("name")
	summary, ok := s.catalog.Describe(name, true)
	if !ok {
		writeError(c, http.StatusNotFound, actionNotFound(name))
		return
	}
	c.JSON(http.StatusOK, summary)
}

// SelectResult 一次试选的结果
type SelectResult struct {
	Action    string `json:"action"`
	Strategy  string `json:"strategy"`
	NodeID    string `json:"nodeID"`
	Local     bool   `json:"local"`
	Available bool   `json:"available"`
}

type selectQuery struct {
	Available bool `form:"available"`
}

// selectAction 在列表上执行一次选择，会推进策略状态（如轮询游标）
func (s *Server) selectAction(c *gin.Context) {
	var q selectQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeError(c, http.StatusBadRequest, xerrors.Mark(err, xerrors.ErrInvalidInput))
		return
	}

	name := c.Param("name")
	list, ok := s.catalog.Get(name)
	if !ok {
		writeError(c, http.StatusNotFound, actionNotFound(name))
		return
	}

	var (
		ep  *catalog.Endpoint
		err error
	)
	if q.Available {
		ep, err = list.SelectAvailable()
	} else {
		ep, err = list.Select()
	}
	if err != nil {
		writeError(c, http.StatusServiceUnavailable, err)
		return
	}
	c.JSON(http.StatusOK, SelectResult{
		Action:    name,
		Strategy:  list.StrategyName(),
		NodeID:    ep.NodeID(),
		Local:     ep.Local(),
		Available: ep.Available(),
	})
}

func actionNotFound(name string) error {
	return xerrors.WithCode(xerrors.Wrapf(xerrors.ErrNotFound, "action %q", name), CodeActionNotFound)
}

// writeError 输出错误消息与错误链上的错误码
func writeError(c *gin.Context, status int, err error) {
	body := gin.H{"error": err.Error()}
	if code := xerrors.GetCode(err); code != "" {
		body["code"] = code
	}
	c.JSON(status, body)
}

func (s *Server) listNodes(c *gin.Context) {
	nodes := s.table.List()
	out := make([]NodeSummary, 0, len(nodes))
	for _, n := range nodes {
		ns := NodeSummary{
			ID:        n.ID(),
			Hostname:  n.Hostname(),
			Local:     n.IsLocal(),
			Reachable: n.Reachable(),
			Degraded:  n.Degraded(),
			Available: n.Available(),
			Samples:   n.CPU().Len(),
		}
		if avg, ok := n.CPU().Average(s.cfg.CPUSamples); ok {
			ns.CPU = &avg
		}
		out = append(out, ns)
	}
	c.JSON(http.StatusOK, out)
}
