package monitor

type HttpRequestLabels struct {
	Status string
	Route  string
	Method string
}

type WebhookDeliveryLabels struct {
	Status string
}

func (w WebhookDeliveryLabels) ToMap() map[string]string {
	return map[string]string{
		"status": w.Status,
	}
}

var WebhookDeliveryLabelNames = []string{"status"}

type RoomLifecycleLabels struct {
	Trigger string
}

func (r RoomLifecycleLabels) ToMap() map[string]string {
	return map[string]string{
		"trigger": r.Trigger,
	}
}

var RoomLifecycleLabelNames = []string{"trigger"}
