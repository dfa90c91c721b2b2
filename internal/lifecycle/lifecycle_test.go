package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRestorerRunsNewestFirst(t *testing.T) {
	var order []int
	r := &Restorer{}
	r.Add(func() { order = append(order, 1) })
	r.Add(func() { order = append(order, 2) })
	r.Add(func() { order = append(order, 3) })

	r.Run()
	require.Equal(t, []int{3, 2, 1}, order)
}

func TestRestorerRunsOnce(t *testing.T) {
	count := 0
	r := &Restorer{}
	r.Add(func() { count++ })

	r.Run()
	r.Run()
	require.Equal(t, 1, count)
}

func TestRestorerEmpty(t *testing.T) {
	r := &Restorer{}
	r.Run() // must not panic
}
