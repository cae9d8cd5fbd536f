package pathtree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetChildSkipsEmptySegments(t *testing.T) {
	root := New("agora")
	root.AddChildren("chat")
	chat, err := root.GetChild("chat")
	require.NoError(t, err)
	chat.AddChildren("general")

	node, err := root.GetChild("/chat//general/")
	require.NoError(t, err)
	assert.Equal(t, "general", node.Name())
}

func TestRemoveChildAndBranchPreservesSiblings(t *testing.T) {
	root := New("agora")
	a := New("a")
	root.AddChild(a)
	b := New("b")
	a.AddChild(b)
	b.AddChildren("c", "d")

	require.NoError(t, root.RemoveChildAndBranch("a/b/c"))

	_, err := root.GetChild("a/b/c")
	assert.Error(t, err)
	d, err := root.GetChild("a/b/d")
	require.NoError(t, err)
	assert.Equal(t, "d", d.Name())
}

func TestRemoveChildAndBranchWalksUpThroughSingleChildChain(t *testing.T) {
	root := New("agora")
	a := New("a")
	root.AddChild(a)
	b := New("b")
	a.AddChild(b)
	c := New("c")
	b.AddChild(c)

	require.NoError(t, root.RemoveChildAndBranch("a/b/c"))

	_, err := root.GetChild("a")
	assert.Error(t, err, "entire single-child chain above the removed leaf should be pruned")
}

func TestRemoveChildAndBranchRejectsRootAndNonLeaf(t *testing.T) {
	root := New("agora")
	assert.Error(t, root.RemoveChildAndBranch(""))

	a := New("a")
	root.AddChild(a)
	a.AddChildren("b")
	assert.Error(t, root.RemoveChildAndBranch("a"))
}

func TestToReprFromReprRoundTrip(t *testing.T) {
	root := New("agora")
	chat := New("chat")
	root.AddChild(chat)
	chat.AddChildren("general", "random")

	repr := root.ToRepr()
	parsed, err := FromRepr(repr)
	require.NoError(t, err)
	assert.Equal(t, repr, parsed.ToRepr())
}

func TestDisplayTreeFormatting(t *testing.T) {
	root := New("agora")
	chat := New("chat")
	root.AddChild(chat)
	chat.AddChildren("general")
	root.AddChildren("metrics")

	out := root.DisplayTree()
	assert.Contains(t, out, "├── chat")
	assert.Contains(t, out, "│   └── general")
}

func TestPath(t *testing.T) {
	root := New("agora")
	chat := New("chat")
	root.AddChild(chat)
	assert.Equal(t, "/agora/chat", chat.Path())
	assert.Equal(t, "/agora", root.Path())
}
