package mapping

import "errors"

var (
	ErrInvalidDomain         = errors.New("mapping: invalid domain name")
	ErrDomainExists          = errors.New("mapping: domain already registered")
	ErrLifeCycleNil          = errors.New("mapping: lifecycle is nil")
	ErrLifeCycleStarted      = errors.New("mapping: lifecycle already started")
	ErrLifeCycleNotStarted   = errors.New("mapping: lifecycle not started")
	ErrNoFactory             = errors.New("mapping: no engine factory configured")
	ErrNoScope               = errors.New("mapping: no scope installed on context")
	ErrNoContext             = errors.New("mapping: cannot close non existing context")
	ErrContextAlreadyOpen    = errors.New("mapping: a context is already open")
	ErrContextClosed         = errors.New("mapping: session context closed")
	ErrListenerNil           = errors.New("mapping: listener is nil")
	ErrNoSynchronization     = errors.New("mapping: no active synchronization")
	ErrSynchronizationActive = errors.New("mapping: a synchronization is already active")
	ErrSynchronizationClosed = errors.New("mapping: synchronization closed")
	ErrLifecycleOrder        = errors.New("mapping: invalid manager phase transition")
)
