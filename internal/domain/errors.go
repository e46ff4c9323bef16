package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrValidation             = errors.New("configuration validation failed")
	ErrConflict               = errors.New("conflict")
	ErrNotFound               = errors.New("resource not found")
	ErrInvalidState           = errors.New("invalid state")
	ErrTimeout                = errors.New("operation timeout")
	ErrRuntime                = errors.New("container runtime operation failed")
	ErrFileStore              = errors.New("file store operation failed")
	ErrLastValidator          = errors.New("cannot remove the last validator")
	ErrPrerequisite           = errors.New("environment prerequisite not met")
	ErrContainerNotAssociated = errors.New("no container associated with node")
)

type ValidationError struct {
	Field  string
	Reason string
	Value  string
}

func NewValidationError(field, reason, value string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason, Value: value}
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return errors.Is(target, ErrValidation)
}

type ConflictKind string

const (
	ConflictChainID       ConflictKind = "chain_id"
	ConflictSubnet        ConflictKind = "subnet"
	ConflictDuplicateName ConflictKind = "duplicate_name"
	ConflictDuplicateIP   ConflictKind = "duplicate_ip"
	ConflictDuplicatePort ConflictKind = "duplicate_port"
)

// ConflictError reports that Subject collides with an existing resource With.
type ConflictError struct {
	Kind    ConflictKind
	Subject string
	With    string
}

func (e *ConflictError) Error() string {
	switch e.Kind {
	case ConflictChainID:
		return fmt.Sprintf("chain id %s already used by cluster %q", e.Subject, e.With)
	case ConflictSubnet:
		return fmt.Sprintf("subnet %s overlaps network %q", e.Subject, e.With)
	case ConflictDuplicateName:
		return fmt.Sprintf("duplicate node name %q", e.Subject)
	case ConflictDuplicateIP:
		return fmt.Sprintf("duplicate node ip %s (already used by %q)", e.Subject, e.With)
	case ConflictDuplicatePort:
		return fmt.Sprintf("duplicate rpc port %s (already used by %q)", e.Subject, e.With)
	default:
		return fmt.Sprintf("%s conflict: %s", e.Kind, e.Subject)
	}
}

func (e *ConflictError) Is(target error) bool {
	return errors.Is(target, ErrConflict)
}

type NotFoundKind string

const (
	NotFoundNode    NotFoundKind = "node"
	NotFoundNetwork NotFoundKind = "network"
	NotFoundCluster NotFoundKind = "cluster"
)

type NotFoundError struct {
	Kind NotFoundKind
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

func (e *NotFoundError) Is(target error) bool {
	return errors.Is(target, ErrNotFound)
}

type Entity string

const (
	EntityNetwork Entity = "network"
	EntityNode    Entity = "node"
)

type InvalidStateError struct {
	Entity    Entity
	Name      string
	Operation string
	Current   string
	Allowed   []string
}

func (e *InvalidStateError) Error() string {
	msg := fmt.Sprintf("cannot %s %s %q in state %s", e.Operation, e.Entity, e.Name, e.Current)
	if len(e.Allowed) > 0 {
		msg += " (allowed: " + strings.Join(e.Allowed, ", ") + ")"
	}
	return msg
}

func (e *InvalidStateError) Is(target error) bool {
	return errors.Is(target, ErrInvalidState)
}

type TimeoutKind string

const (
	TimeoutNodeReadiness TimeoutKind = "node_readiness"
)

type TimeoutError struct {
	Kind     TimeoutKind
	Subject  string
	Deadline time.Duration
	Cause    error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("%s for %q did not complete within %s", e.Kind, e.Subject, e.Deadline)
	if e.Cause != nil {
		msg += ": last error: " + e.Cause.Error()
	}
	return msg
}

func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

func (e *TimeoutError) Is(target error) bool {
	return errors.Is(target, ErrTimeout)
}

type RuntimeError struct {
	Op  string
	Err error
}

func NewRuntimeError(op string, err error) *RuntimeError {
	return &RuntimeError{Op: op, Err: err}
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime %s: %v", e.Op, e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

func (e *RuntimeError) Is(target error) bool {
	return errors.Is(target, ErrRuntime)
}

type FileStoreError struct {
	Op   string
	Path string
	Err  error
}

func NewFileStoreError(op, path string, err error) *FileStoreError {
	return &FileStoreError{Op: op, Path: path, Err: err}
}

func (e *FileStoreError) Error() string {
	return fmt.Sprintf("file store %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileStoreError) Unwrap() error {
	return e.Err
}

func (e *FileStoreError) Is(target error) bool {
	return errors.Is(target, ErrFileStore)
}

type LastValidatorError struct {
	Node string
}

func (e *LastValidatorError) Error() string {
	return fmt.Sprintf("node %q is the last validator; removing it would halt block production", e.Node)
}

func (e *LastValidatorError) Is(target error) bool {
	return errors.Is(target, ErrLastValidator)
}

type PrerequisiteError struct {
	Check  string
	Reason string
	Err    error
}

func (e *PrerequisiteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("prerequisite %s: %s: %v", e.Check, e.Reason, e.Err)
	}
	return fmt.Sprintf("prerequisite %s: %s", e.Check, e.Reason)
}

func (e *PrerequisiteError) Unwrap() error {
	return e.Err
}

func (e *PrerequisiteError) Is(target error) bool {
	return errors.Is(target, ErrPrerequisite)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

func IsLastValidator(err error) bool {
	return errors.Is(err, ErrLastValidator)
}

func IsPrerequisite(err error) bool {
	return errors.Is(err, ErrPrerequisite)
}

// ConflictKindOf returns the kind of the first ConflictError in err's chain.
func ConflictKindOf(err error) (ConflictKind, bool) {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return conflict.Kind, true
	}
	return "", false
}
