package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"wa_ingest/extract"
	"wa_ingest/identity"
	"wa_ingest/logging"
	"wa_ingest/models"
	"wa_ingest/storage"
)

// Outcome classifies what ingesting one message did
type Outcome string

const (
	// OutcomeUnattributed: no sender number; stored for audit only
	OutcomeUnattributed Outcome = "unattributed"
	// OutcomeNotProperty: no property or transaction type in the text
	OutcomeNotProperty Outcome = "not_property"
	// OutcomeClassified: property-related but not an offer (wanted, sold,
	// rented, or no transaction keyword)
	OutcomeClassified Outcome = "classified"
	// OutcomePropertyCreated: a new listing was created
	OutcomePropertyCreated Outcome = "property_created"
	// OutcomeDuplicate: already ingested by an earlier run, nothing new written
	OutcomeDuplicate Outcome = "duplicate"
)

// IncomingMessage is a segmented message with its sender resolved
type IncomingMessage struct {
	Date         time.Time
	SenderNumber string
	SenderName   string
	Text         string
	SourceFile   string
}

// Result is the outcome of ingesting one message
type Result struct {
	Outcome         Outcome
	MessageID       uuid.UUID
	UserID          *uuid.UUID
	PropertyID      *uuid.UUID
	PropertyRelated bool
	MessageCreated  bool
	UserCreated     bool
	AgentCreated    bool
	PropertyCreated bool
}

// PasswordHasher produces the password hash stored for auto-created users
type PasswordHasher func() (string, error)

// placeholderPasswordHash hashes a random secret nobody knows, so the
// account exists but cannot be logged into until a reset.
func placeholderPasswordHash() (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// IngestionService runs the per-message ingestion protocol: persist the
// message, extract, resolve or create the owner, create the listing, link.
type IngestionService struct {
	store     storage.Store
	extractor *extract.Extractor
	hasher    PasswordHasher
	now       func() time.Time
	log       *logging.Logger
}

type IngestOption func(*IngestionService)

func WithPasswordHasher(h PasswordHasher) IngestOption {
	return func(s *IngestionService) { s.hasher = h }
}

func WithClock(now func() time.Time) IngestOption {
	return func(s *IngestionService) { s.now = now }
}

func WithLogger(l *logging.Logger) IngestOption {
	return func(s *IngestionService) { s.log = l }
}

func NewIngestionService(store storage.Store, opts ...IngestOption) *IngestionService {
	s := &IngestionService{
		store:     store,
		extractor: extract.New(),
		hasher:    placeholderPasswordHash,
		now:       time.Now,
		log:       logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessMessage ingests one message. It is idempotent: messages are keyed
// by fingerprint, users by mobile number, agents by user and properties by
// source message, so re-running over the same export writes nothing new.
// On stores that support it all writes happen in one transaction.
func (s *IngestionService) ProcessMessage(ctx context.Context, in IncomingMessage) (*Result, error) {
	now := s.now()

	var data *models.ExtractedPropertyData
	if in.SenderNumber != "" {
		data = s.extractor.Extract(in.Text)
	}

	msg := &models.RawMessage{
		ID:            uuid.New(),
		Fingerprint:   identity.MessageFingerprint(in.SenderNumber, in.Date, in.Text),
		MessageDate:   in.Date,
		SenderNumber:  in.SenderNumber,
		SenderName:    in.SenderName,
		MessageText:   in.Text,
		Processed:     data != nil,
		ExtractedData: data,
		SourceFile:    in.SourceFile,
		CreatedAt:     now,
	}

	var result *Result
	err := storage.RunInTx(ctx, s.store, func(st storage.Store) error {
		result = &Result{PropertyRelated: data != nil}
		return s.process(ctx, st, in, msg, data, now, result)
	})
	if err != nil {
		return nil, err
	}

	if result.PropertyCreated {
		s.log.Info("property created",
			"title", propertyTitle(data),
			"sender_number", in.SenderNumber,
			"file", in.SourceFile,
		)
	}
	return result, nil
}

func (s *IngestionService) process(ctx context.Context, st storage.Store, in IncomingMessage, msg *models.RawMessage, data *models.ExtractedPropertyData, now time.Time, result *Result) error {
	created, err := st.CreateOrUpdateMessage(ctx, msg)
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	result.MessageID = msg.ID
	result.MessageCreated = created

	switch {
	case in.SenderNumber == "":
		result.Outcome = OutcomeUnattributed
		if !created {
			result.Outcome = OutcomeDuplicate
		}
		return nil
	case data == nil:
		result.Outcome = OutcomeNotProperty
		if !created {
			result.Outcome = OutcomeDuplicate
		}
		return nil
	}

	user, agent, err := s.resolveOwner(ctx, st, in, now, result)
	if err != nil {
		return err
	}
	result.UserID = &user.ID

	if data.TransactionType.IsOffer() {
		property, err := buildProperty(data, msg, user, agent, now)
		if err != nil {
			return err
		}
		propertyCreated, err := st.CreateProperty(ctx, property)
		if err != nil {
			return fmt.Errorf("create property: %w", err)
		}
		result.PropertyCreated = propertyCreated
		result.PropertyID = &property.ID
	}

	if needsLink(msg, result) {
		if err := st.LinkMessage(ctx, msg.ID, result.PropertyID, result.UserID); err != nil {
			return fmt.Errorf("link message: %w", err)
		}
	}

	switch {
	case !created && !result.UserCreated && !result.AgentCreated && !result.PropertyCreated:
		result.Outcome = OutcomeDuplicate
	case result.PropertyCreated:
		result.Outcome = OutcomePropertyCreated
	default:
		result.Outcome = OutcomeClassified
	}
	return nil
}

// resolveOwner finds the sender's user or creates it as an agent, and makes
// sure an agent-role user has its Agent row.
func (s *IngestionService) resolveOwner(ctx context.Context, st storage.Store, in IncomingMessage, now time.Time, result *Result) (*models.User, *models.Agent, error) {
	user, err := st.FindUserByPhone(ctx, in.SenderNumber)
	if errors.Is(err, storage.ErrNotFound) {
		hash, herr := s.hasher()
		if herr != nil {
			return nil, nil, fmt.Errorf("hash placeholder password: %w", herr)
		}
		user = &models.User{
			ID:           uuid.New(),
			MobileNumber: in.SenderNumber,
			FullName:     in.SenderName,
			Role:         models.RoleAgent,
			PasswordHash: hash,
			IsActive:     true,
			CreatedAt:    now,
		}
		// a concurrent worker may have won the race; CreateUser then loads its row
		result.UserCreated, err = st.CreateUser(ctx, user)
		if err != nil {
			return nil, nil, fmt.Errorf("create user: %w", err)
		}
	} else if err != nil {
		return nil, nil, fmt.Errorf("find user: %w", err)
	}

	if user.Role != models.RoleAgent {
		return user, nil, nil
	}

	agent, err := st.FindAgentByUserID(ctx, user.ID)
	if errors.Is(err, storage.ErrNotFound) {
		agent = &models.Agent{ID: uuid.New(), UserID: user.ID, CreatedAt: now}
		result.AgentCreated, err = st.CreateAgent(ctx, agent)
		if err != nil {
			return nil, nil, fmt.Errorf("create agent: %w", err)
		}
		if result.AgentCreated && !result.UserCreated {
			s.log.Warn("agent profile back-filled", "sender_number", in.SenderNumber)
		}
	} else if err != nil {
		return nil, nil, fmt.Errorf("find agent: %w", err)
	}
	return user, agent, nil
}

func needsLink(msg *models.RawMessage, result *Result) bool {
	if result.PropertyID != nil && (msg.PropertyID == nil || *msg.PropertyID != *result.PropertyID) {
		return true
	}
	return result.UserID != nil && (msg.UserID == nil || *msg.UserID != *result.UserID)
}

func buildProperty(data *models.ExtractedPropertyData, msg *models.RawMessage, user *models.User, agent *models.Agent, now time.Time) (*models.Property, error) {
	features, err := json.Marshal(data.Features)
	if err != nil {
		return nil, fmt.Errorf("encode features: %w", err)
	}

	propertyType := data.PropertyType
	if propertyType == "" {
		propertyType = models.PropertyTypeOther
	}

	p := &models.Property{
		ID:                 uuid.New(),
		Title:              propertyTitle(data),
		Description:        data.Description,
		Type:               propertyType,
		TransactionType:    data.TransactionType,
		AreaNumber:         data.AreaNumber,
		NeighborhoodNumber: data.NeighborhoodNumber,
		Area:               data.Area,
		FloorNumber:        data.FloorNumber,
		InstallmentAmount:  data.InstallmentAmount,
		TotalPrice:         data.TotalPrice,
		YearsPaid:          data.YearsPaid,
		YearsRemaining:     data.YearsRemaining,
		Finishing:          optional(data.Finishing),
		ContactNumber:      optional(data.ContactNumber),
		Features:           features,
		DatePosted:         msg.MessageDate,
		OwnerID:            user.ID,
		SourceMessageID:    msg.ID,
		CreatedAt:          now,
	}
	if agent != nil {
		p.AgentID = &agent.ID
	}
	return p, nil
}

// propertyTitle is "<type> في الحي <n>", "property" standing in for an
// unknown type and the district part omitted when absent.
func propertyTitle(data *models.ExtractedPropertyData) string {
	title := string(data.PropertyType)
	if title == "" {
		title = "property"
	}
	if data.AreaNumber != nil {
		title += " في الحي " + strconv.Itoa(*data.AreaNumber)
	}
	return strings.TrimSpace(title)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
