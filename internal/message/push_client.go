package message

import "context"

//go:generate mockery --name=PushNotifierClient --case=underscore --structname=PushNotifierClientMock --inpackage --filename=mocks.go
type PushNotifierClient interface {
	SendPush(ctx context.Context, push Push) error
	PushNotifierType() PushNotifierType
}
