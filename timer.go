// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sessbridge

import "time"

// scheduled is a pending task with its deadline. seq breaks ties so
// tasks with equal deadlines run in submission order.
type scheduled struct {
	when   time.Time
	seq    uint64
	handle *Handle
}

// timerHeap is a min-heap of scheduled tasks ordered by (when, seq).
type timerHeap []scheduled

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].seq < h[j].seq
	}
	return h[i].when.Before(h[j].when)
}

func (h timerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *timerHeap) Push(x any) {
	*h = append(*h, x.(scheduled))
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = scheduled{}
	*h = old[:n-1]
	return x
}
