package application

import (
	"context"

	"telegram-miniapp/internal/domain/model"
)

// ---- small interfaces to decouple the facade from concrete usecase structs ----

type NotifierIface interface {
	Notify(ctx context.Context, userID, message string) (model.DeliveryResult, error)
}

type ServiceHandlerIface interface {
	Handle(ctx context.Context, req *model.ServiceRequest) (*model.ServiceResponse, error)
}
