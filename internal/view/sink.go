// Package view 定义了引擎与展示层之间唯一的边界：视图提交端口。
//
// Reconciler 只通过 Sink 的四种操作写入命名绑定点，这些操作本身不包含任何逻辑。
// Document 是内存中的实现，供 HTTP、SSE 与终端渲染读取；Recorder 供测试记录提交序列。
package view

// Sink 是视图提交端口
type Sink interface {
	SetText(id, text string)
	SetVisible(id string, visible bool)
	SetAttr(id, name, value string)
	ReplaceChildren(id string, children []Node)
}

// Flusher 是可选接口，标记一批提交的结束。
type Flusher interface {
	Flush()
}

// Flush 在 sink 支持时结束当前提交批次
func Flush(sink Sink) {
	if f, ok := sink.(Flusher); ok {
		f.Flush()
	}
}

// Node 是列表、表格等容器中的一个子节点
type Node struct {
	ID       string            `json:"id,omitempty"`
	Text     string            `json:"text"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Children []Node            `json:"children,omitempty"`
}

// Attr 返回节点属性，不存在时返回空字符串
func (n Node) Attr(name string) string {
	return n.Attrs[name]
}

func cloneNodes(nodes []Node) []Node {
	if nodes == nil {
		return nil
	}
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[i] = Node{
			ID:       n.ID,
			Text:     n.Text,
			Attrs:    cloneAttrs(n.Attrs),
			Children: cloneNodes(n.Children),
		}
	}
	return out
}

func cloneAttrs(attrs map[string]string) map[string]string {
	if attrs == nil {
		return nil
	}
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
