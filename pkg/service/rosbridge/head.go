package rosbridge

import "time"

const (
	PanTopic  = "/head_pan_controller/command"
	TiltTopic = "/head_tilt_controller/command"

	float64Type = "std_msgs/Float64"
)

// Publisher is the part of Client used by Head
type Publisher interface {
	Publish(topic, msgType string, msg any) error
}

// Head moves the robot head through the pan and tilt controllers
type Head struct {
	pub Publisher
}

func NewHead(pub Publisher) *Head {
	return &Head{pub: pub}
}

type jointCommand struct {
	Position float64 `json:"position"`
	Duration float64 `json:"duration"`
}

func (h *Head) Pan(position float64, d time.Duration) error {
	return h.pub.Publish(PanTopic, float64Type, jointCommand{Position: position, Duration: d.Seconds()})
}

func (h *Head) Tilt(position float64, d time.Duration) error {
	return h.pub.Publish(TiltTopic, float64Type, jointCommand{Position: position, Duration: d.Seconds()})
}
