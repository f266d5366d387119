package middleware

import "github.com/finlayer/onboard/pkg/ports"

// Middleware allows wrapping a LocalStore to add behavior.
type Middleware func(ports.LocalStore) ports.LocalStore
