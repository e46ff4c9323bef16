package ports

import "context"

type PrerequisiteRequest struct {
	Image     string
	NodeCount int
	DataDir   string
}

type PrerequisiteChecker interface {
	Check(ctx context.Context, req PrerequisiteRequest) error
}
