package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Entity is a document stored in its own collection
type Entity interface {
	GetID() primitive.ObjectID
	SetID(id primitive.ObjectID)
}

// Defaulter fills schema defaults before a request body is applied to a new document
type Defaulter interface {
	ApplyDefaults()
}

// BeforeSaver runs on every persist, after the body has been applied and before validation
type BeforeSaver interface {
	BeforeSave(isNew bool)
}
