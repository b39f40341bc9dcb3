// Package cases lists the legal cases visible to a portal user.
package cases

import (
	"context"
	"log/slog"
	"sort"

	"github.com/tendant/simple-portal/pkg/backend"
	apperrors "github.com/tendant/simple-portal/pkg/errors"
	"github.com/tendant/simple-portal/pkg/role"
)

type CaseService struct {
	data   backend.DataStore
	logger *slog.Logger
}

func NewCaseService(data backend.DataStore, logger *slog.Logger) *CaseService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CaseService{data: data, logger: logger}
}

// List returns the cases a user may see, newest first. Clients see only their
// own cases; staff and administrators see every case.
func (s *CaseService) List(ctx context.Context, viewer role.Role, userID string) ([]backend.Case, error) {
	all, err := s.data.ListCases(ctx)
	if err != nil {
		s.logger.Error("failed to list cases", "user_id", userID, "err", err)
		return nil, apperrors.FromBackend(err, "cases")
	}
	if all == nil {
		all = []backend.Case{}
	}

	visible := role.Match(viewer,
		func() []backend.Case { return all },
		func() []backend.Case { return all },
		func() []backend.Case { return ownedBy(all, userID) },
		func() []backend.Case { return nil },
	)
	if visible == nil {
		return nil, apperrors.Forbidden("no role assigned")
	}
	sort.SliceStable(visible, func(i, j int) bool {
		return visible[i].CreatedAt.After(visible[j].CreatedAt)
	})
	return visible, nil
}

// ForClient returns the cases of one client, used to pick the case a time
// entry is billed to.
func (s *CaseService) ForClient(ctx context.Context, clientID string) ([]backend.Case, error) {
	all, err := s.data.ListCases(ctx)
	if err != nil {
		return nil, apperrors.FromBackend(err, "cases")
	}
	return ownedBy(all, clientID), nil
}

func ownedBy(all []backend.Case, clientID string) []backend.Case {
	out := []backend.Case{}
	for _, c := range all {
		if c.ClienteID == clientID {
			out = append(out, c)
		}
	}
	return out
}
