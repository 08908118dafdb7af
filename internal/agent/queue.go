package agent

import "strings"

// Queue 保存待执行任务，下标越小优先级越高。
type Queue struct {
	tasks []string
}

// Len 返回待执行任务数量。
func (q *Queue) Len() int { return len(q.tasks) }

// Tasks 返回任务副本。
func (q *Queue) Tasks() []string {
	out := make([]string, len(q.tasks))
	copy(out, q.tasks)
	return out
}

// Replace 用新的任务列表替换队列。
func (q *Queue) Replace(tasks []string) {
	q.tasks = append(q.tasks[:0:0], tasks...)
}

// Append 将任务追加到队尾。
func (q *Queue) Append(tasks ...string) {
	q.tasks = append(q.tasks, tasks...)
}

// PushFront 将任务放到队首，使其成为下一个执行的任务。
func (q *Queue) PushFront(task string) {
	q.tasks = append([]string{task}, q.tasks...)
}

// PopFront 取出队首任务。
func (q *Queue) PopFront() (string, bool) {
	if len(q.tasks) == 0 {
		return "", false
	}
	task := q.tasks[0]
	q.tasks = q.tasks[1:]
	return task, true
}

// Truncate 保留前 limit 个任务，不改变相对顺序。limit <= 0 时不截断。
func (q *Queue) Truncate(limit int) {
	if limit > 0 && len(q.tasks) > limit {
		q.tasks = q.tasks[:limit]
	}
}

// SplitLines 将模型回复拆分为去除首尾空白后的非空行。
func SplitLines(text string) []string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
