package storage

import (
	"context"

	"github.com/openct/openct-cms/internal/cms"
)

// RecordRepository defines the parsed-record operations a sync needs.
type RecordRepository interface {
	ReplaceClasses(ctx context.Context, institution string, classes []cms.ClassInfo) error
	ReplaceGrades(ctx context.Context, institution string, grades []cms.GradeInfo) error
	GetClasses(ctx context.Context, institution string) ([]cms.ClassInfo, error)
	GetGrades(ctx context.Context, institution string) ([]cms.GradeInfo, error)
}

// CustomRepository defines operations on user-edited institution data.
type CustomRepository interface {
	cms.AdvancedCustomSource
	SetAdvancedCustom(ctx context.Context, info cms.AdvancedCustomInfo) error
	ListAdvancedCustom(ctx context.Context) ([]cms.AdvancedCustomInfo, error)
	DeleteAdvancedCustom(ctx context.Context, schoolName string) error
	SetCustomInstitution(ctx context.Context, inst cms.Institution) error
	GetCustomInstitution(ctx context.Context) (*cms.Institution, error)
	DeleteCustomInstitution(ctx context.Context) error
}

// Compile-time interface checks.
var (
	_ RecordRepository = (*DB)(nil)
	_ CustomRepository = (*DB)(nil)
)
