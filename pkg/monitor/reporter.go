// Package monitor publishes radio status to an MQTT broker.
//
// Events are published to <device>/events as serialized
// google.protobuf.Struct messages. The latest status is kept retained on
// <device>/meta so late subscribers see the current state.
package monitor

import (
	"sync"

	"github.com/golang/glog"
	"github.com/golang/protobuf/proto"
	structpb "github.com/golang/protobuf/ptypes/struct"

	"github.com/robotalks/wifibridge/pkg/radio"
)

// Topic names under the device.
const (
	TopicEvents = "events"
	TopicMeta   = "meta"
)

// Reporter implements radio.Observer by publishing events.
type Reporter struct {
	Pub      Publisher
	DeviceID string

	lock      sync.Mutex
	last      radio.Event
	hasLast   bool
	keepAlive uint64
}

// NewReporter creates a Reporter.
func NewReporter(pub Publisher, deviceID string) *Reporter {
	return &Reporter{Pub: pub, DeviceID: deviceID}
}

// Topic returns the topic of name under the device.
func (r *Reporter) Topic(name string) string {
	return r.DeviceID + "/" + name
}

// RadioEvent implements radio.Observer. Publishing never blocks.
func (r *Reporter) RadioEvent(ev radio.Event) {
	r.lock.Lock()
	r.last, r.hasLast = ev, true
	meta := r.metaLocked()
	r.lock.Unlock()
	r.publish(TopicEvents, EventStruct(ev), false)
	r.publish(TopicMeta, meta, true)
}

// KeepAliveSent records a keep-alive. It matches bridge.KeepAlive.OnSent.
func (r *Reporter) KeepAliveSent(sent uint64) {
	r.lock.Lock()
	r.keepAlive = sent
	r.lock.Unlock()
	r.publish(TopicEvents, &structpb.Struct{Fields: map[string]*structpb.Value{
		"kind": stringValue("keepalive"),
		"sent": numberValue(float64(sent)),
	}}, false)
}

// PublishMeta republishes the retained status, used on (re)connect.
func (r *Reporter) PublishMeta() {
	r.lock.Lock()
	meta := r.metaLocked()
	r.lock.Unlock()
	r.publish(TopicMeta, meta, true)
}

// OnConnect is a ConnectHandler republishing the status.
func (r *Reporter) OnConnect(*Queue) {
	r.PublishMeta()
}

func (r *Reporter) metaLocked() *structpb.Struct {
	s := &structpb.Struct{Fields: map[string]*structpb.Value{
		"device":    stringValue(r.DeviceID),
		"keepalive": numberValue(float64(r.keepAlive)),
	}}
	if r.hasLast {
		s.Fields["task"] = stringValue(r.last.Task.String())
		s.Fields["stage"] = stringValue(r.last.Stage.String())
		s.Fields["ready"] = boolValue(r.last.Task == radio.TaskReady)
	} else {
		s.Fields["ready"] = boolValue(false)
	}
	return s
}

func (r *Reporter) publish(name string, s *structpb.Struct, retain bool) {
	payload, err := proto.Marshal(s)
	if err != nil {
		glog.Errorf("monitor: encode %s: %v", name, err)
		return
	}
	qos := byte(0)
	if retain {
		qos = 1
	}
	r.Pub.PubWith(r.Topic(name), payload, qos, retain)
}

// EventStruct converts a sequencer event to a Struct.
func EventStruct(ev radio.Event) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"kind":     stringValue(ev.Kind.String()),
		"task":     stringValue(ev.Task.String()),
		"stage":    stringValue(ev.Stage.String()),
		"sends":    numberValue(float64(ev.Sends)),
		"timeouts": numberValue(float64(ev.Timeouts)),
		"millis":   numberValue(float64(ev.Millis)),
	}}
}

// DecodeStruct parses a payload published by a Reporter.
func DecodeStruct(payload []byte) (*structpb.Struct, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(payload, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func stringValue(s string) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_StringValue{StringValue: s}}
}

func numberValue(n float64) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_NumberValue{NumberValue: n}}
}

func boolValue(b bool) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_BoolValue{BoolValue: b}}
}
