package events

import (
	"context"
	"time"
)

// Type 表示生命周期事件的类型。
type Type string

const (
	TypeTasksGenerated   Type = "tasks.generated"
	TypeTaskCompleted    Type = "task.completed"
	TypeObjectiveChanged Type = "objective.changed"
)

// Event 是对外发布的事件载荷。
type Event struct {
	Type      Type      `json:"type"`
	Objective string    `json:"objective"`
	Task      string    `json:"task,omitempty"`
	Result    string    `json:"result,omitempty"`
	Tasks     []string  `json:"tasks,omitempty"`
	At        time.Time `json:"at"`
}

// Publisher 定义事件发布接口。发布失败不应影响主流程。
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Nop 丢弃所有事件。
type Nop struct{}

// Publish 实现 Publisher 接口。
func (Nop) Publish(context.Context, Event) error { return nil }

// Close 实现 Publisher 接口。
func (Nop) Close() error { return nil }

// Recorder 在内存中记录事件，主要用于测试。
type Recorder struct {
	Events []Event
}

// Publish 追加事件。
func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.Events = append(r.Events, event)
	return nil
}

// Close 实现 Publisher 接口。
func (r *Recorder) Close() error { return nil }

// Types 返回已记录事件的类型序列。
func (r *Recorder) Types() []Type {
	types := make([]Type, 0, len(r.Events))
	for _, e := range r.Events {
		types = append(types, e.Type)
	}
	return types
}
