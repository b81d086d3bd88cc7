// Package seed loads YAML fixtures into the store.
package seed

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"

	"github.com/capitalize-ai/proconnect/internal/model"
	"github.com/capitalize-ai/proconnect/internal/store"
	"github.com/capitalize-ai/proconnect/pkg/logger"
)

// Fixtures is the document read from a fixture file. Profiles are referenced
// elsewhere in the file by their key.
type Fixtures struct {
	Profiles      []ProfileFixture      `yaml:"profiles"`
	Companies     []CompanyFixture      `yaml:"companies"`
	Connections   []ConnectionFixture   `yaml:"connections"`
	Conversations []ConversationFixture `yaml:"conversations"`
}

type ProfileFixture struct {
	Key       string   `yaml:"key"`
	ID        string   `yaml:"id"`
	FirstName string   `yaml:"first_name"`
	LastName  string   `yaml:"last_name"`
	Title     string   `yaml:"title"`
	AvatarURL string   `yaml:"avatar_url"`
	UserType  string   `yaml:"user_type"`
	Bio       string   `yaml:"bio"`
	Skills    []string `yaml:"skills"`
	Education string   `yaml:"education"`
}

type CompanyFixture struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	LogoURL     string `yaml:"logo_url"`
	CreatedBy   string `yaml:"created_by"`
}

type ConnectionFixture struct {
	Requester string `yaml:"requester"`
	Addressee string `yaml:"addressee"`
	Status    string `yaml:"status"`
	Type      string `yaml:"type"`
}

type ConversationFixture struct {
	Participants [2]string       `yaml:"participants"`
	Messages     []MessageFixture `yaml:"messages"`
}

type MessageFixture struct {
	Sender  string `yaml:"sender"`
	Content string `yaml:"content"`
	// Ago places the message in the past relative to the load time.
	Ago time.Duration `yaml:"ago"`
}

// Summary counts the rows written by Apply and maps profile keys to their ids.
type Summary struct {
	ProfileIDs    map[string]string
	Profiles      int
	Companies     int
	Connections   int
	Conversations int
	Messages      int
}

// LoadFile parses a fixture file.
func LoadFile(path string) (*Fixtures, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	var f Fixtures
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	return &f, nil
}

// Apply writes the fixtures through st. It stops at the first failing row.
func Apply(ctx context.Context, st *store.Store, f *Fixtures, log *logger.Logger) (*Summary, error) {
	ids := make(map[string]string, len(f.Profiles))
	sum := Summary{ProfileIDs: ids}
	resolve := func(key string) (string, error) {
		id, ok := ids[key]
		if !ok {
			return "", fmt.Errorf("unknown profile key %q", key)
		}
		return id, nil
	}

	for _, pf := range f.Profiles {
		if pf.Key == "" {
			return &sum, fmt.Errorf("profile %q has no key", pf.FirstName)
		}
		if _, dup := ids[pf.Key]; dup {
			return &sum, fmt.Errorf("duplicate profile key %q", pf.Key)
		}
		p := &model.Profile{
			ID:        pf.ID,
			FirstName: pf.FirstName,
			LastName:  pf.LastName,
			Title:     pf.Title,
			AvatarURL: pf.AvatarURL,
			UserType:  model.UserType(pf.UserType),
			Bio:       pf.Bio,
			Skills:    datatypes.NewJSONType(pf.Skills),
			Education: pf.Education,
		}
		if err := st.CreateProfile(ctx, p); err != nil {
			return &sum, fmt.Errorf("profile %q: %w", pf.Key, err)
		}
		ids[pf.Key] = p.ID
		sum.Profiles++
	}

	for _, cf := range f.Companies {
		c := &model.Company{
			Name:        cf.Name,
			Description: cf.Description,
			LogoURL:     cf.LogoURL,
		}
		if cf.CreatedBy != "" {
			id, err := resolve(cf.CreatedBy)
			if err != nil {
				return &sum, fmt.Errorf("company %q: %w", cf.Name, err)
			}
			c.CreatedBy = &id
		}
		if err := st.CreateCompany(ctx, c); err != nil {
			return &sum, fmt.Errorf("company %q: %w", cf.Name, err)
		}
		sum.Companies++
	}

	for i, cf := range f.Connections {
		requester, err := resolve(cf.Requester)
		if err != nil {
			return &sum, fmt.Errorf("connection %d: %w", i, err)
		}
		addressee, err := resolve(cf.Addressee)
		if err != nil {
			return &sum, fmt.Errorf("connection %d: %w", i, err)
		}
		c := &model.Connection{
			RequesterID:    requester,
			AddresseeID:    addressee,
			Status:         model.ConnectionStatus(cf.Status),
			ConnectionType: cf.Type,
		}
		if err := st.CreateConnection(ctx, c); err != nil {
			return &sum, fmt.Errorf("connection %d: %w", i, err)
		}
		sum.Connections++
	}

	now := time.Now().UTC()
	for i, cf := range f.Conversations {
		a, err := resolve(cf.Participants[0])
		if err != nil {
			return &sum, fmt.Errorf("conversation %d: %w", i, err)
		}
		b, err := resolve(cf.Participants[1])
		if err != nil {
			return &sum, fmt.Errorf("conversation %d: %w", i, err)
		}
		conv, _, err := st.GetOrCreateConversation(ctx, a, b)
		if err != nil {
			return &sum, fmt.Errorf("conversation %d: %w", i, err)
		}
		sum.Conversations++

		for _, mf := range cf.Messages {
			sender, err := resolve(mf.Sender)
			if err != nil {
				return &sum, fmt.Errorf("conversation %d: %w", i, err)
			}
			if _, _, err := st.InsertMessage(ctx, &model.Message{
				ConversationID: conv.ID,
				SenderID:       sender,
				Content:        mf.Content,
				CreatedAt:      now.Add(-mf.Ago),
			}); err != nil {
				return &sum, fmt.Errorf("conversation %d: %w", i, err)
			}
			sum.Messages++
		}
	}

	log.Info("fixtures loaded",
		zap.Int("profiles", sum.Profiles),
		zap.Int("companies", sum.Companies),
		zap.Int("connections", sum.Connections),
		zap.Int("conversations", sum.Conversations),
		zap.Int("messages", sum.Messages),
	)
	return &sum, nil
}
