package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/capitalize-ai/proconnect/internal/model"
)

// FindConnectionPath returns a shortest chain of accepted connections from
// startID to targetID, searching at most maxDepth hops. The path includes
// both endpoints. ErrNotFound is returned when no chain exists within range.
func (s *Store) FindConnectionPath(ctx context.Context, startID, targetID string, maxDepth int) (*model.ConnectionPath, error) {
	if startID == "" || targetID == "" {
		return nil, fmt.Errorf("%w: path needs a start and a target", ErrInvalidArgument)
	}
	if startID == targetID {
		return &model.ConnectionPath{PathLength: 0, PathUsers: []string{startID}}, nil
	}

	parent := map[string]string{startID: ""}
	frontier := []string{startID}

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var edges []model.Connection
		err := s.db.WithContext(ctx).
			Select("requester_id", "addressee_id").
			Where("status = ?", model.ConnectionAccepted).
			Where("(requester_id IN ? OR addressee_id IN ?)", frontier, frontier).
			Find(&edges).Error
		if err != nil {
			return nil, fmt.Errorf("failed to expand connection path: %w", err)
		}

		adjacent := make(map[string][]string)
		for _, e := range edges {
			adjacent[e.RequesterID] = append(adjacent[e.RequesterID], e.AddresseeID)
			adjacent[e.AddresseeID] = append(adjacent[e.AddresseeID], e.RequesterID)
		}

		var next []string
		for _, node := range frontier {
			neighbours := adjacent[node]
			sort.Strings(neighbours)
			for _, n := range neighbours {
				if _, seen := parent[n]; seen {
					continue
				}
				parent[n] = node
				if n == targetID {
					return buildPath(parent, targetID), nil
				}
				next = append(next, n)
			}
		}
		frontier = next
	}

	return nil, fmt.Errorf("connection path: %w", ErrNotFound)
}

func buildPath(parent map[string]string, targetID string) *model.ConnectionPath {
	var users []string
	for id := targetID; id != ""; id = parent[id] {
		users = append(users, id)
	}
	for i, j := 0, len(users)-1; i < j; i, j = i+1, j-1 {
		users[i], users[j] = users[j], users[i]
	}
	return &model.ConnectionPath{PathLength: len(users) - 1, PathUsers: users}
}
