package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"trustchat/internal/dispatch"
	"trustchat/internal/models"
)

type MessageServiceMock struct {
	mock.Mock
}

func (m *MessageServiceMock) SendDirect(ctx context.Context, senderID, receiverID string, content dispatch.Content) (models.Message, error) {
	args := m.Called(ctx, senderID, receiverID, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageServiceMock) GetConversation(ctx context.Context, me, other string) ([]models.Message, error) {
	args := m.Called(ctx, me, other)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageServiceMock) MarkSeen(ctx context.Context, messageID string) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

func (m *MessageServiceMock) ListContacts(ctx context.Context, me string) (models.Contacts, error) {
	args := m.Called(ctx, me)
	var contacts models.Contacts
	if val := args.Get(0); val != nil {
		contacts = val.(models.Contacts)
	}
	return contacts, args.Error(1)
}

type GroupServiceMock struct {
	mock.Mock
}

func (m *GroupServiceMock) CreateGroup(ctx context.Context, founder, name string, memberIDs []string) (models.ResolvedGroup, error) {
	args := m.Called(ctx, founder, name, memberIDs)
	var group models.ResolvedGroup
	if val := args.Get(0); val != nil {
		group = val.(models.ResolvedGroup)
	}
	return group, args.Error(1)
}

func (m *GroupServiceMock) JoinGroup(ctx context.Context, userID, groupID string) (models.ResolvedGroup, error) {
	args := m.Called(ctx, userID, groupID)
	var group models.ResolvedGroup
	if val := args.Get(0); val != nil {
		group = val.(models.ResolvedGroup)
	}
	return group, args.Error(1)
}

func (m *GroupServiceMock) UpdateGroup(ctx context.Context, actorID, groupID string, patch models.GroupPatch) (models.ResolvedGroup, error) {
	args := m.Called(ctx, actorID, groupID, patch)
	var group models.ResolvedGroup
	if val := args.Get(0); val != nil {
		group = val.(models.ResolvedGroup)
	}
	return group, args.Error(1)
}

func (m *GroupServiceMock) SendGroup(ctx context.Context, senderID, groupID string, content dispatch.Content) (models.Message, error) {
	args := m.Called(ctx, senderID, groupID, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *GroupServiceMock) GetGroupMessages(ctx context.Context, userID, groupID string) ([]models.Message, error) {
	args := m.Called(ctx, userID, groupID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *GroupServiceMock) ListGroups(ctx context.Context, userID string) ([]models.ResolvedGroup, error) {
	args := m.Called(ctx, userID)
	var groups []models.ResolvedGroup
	if val := args.Get(0); val != nil {
		groups = val.([]models.ResolvedGroup)
	}
	return groups, args.Error(1)
}

var _ interface {
	SendDirect(context.Context, string, string, dispatch.Content) (models.Message, error)
	ListContacts(context.Context, string) (models.Contacts, error)
} = (*MessageServiceMock)(nil)
var _ interface {
	CreateGroup(context.Context, string, string, []string) (models.ResolvedGroup, error)
	ListGroups(context.Context, string) ([]models.ResolvedGroup, error)
} = (*GroupServiceMock)(nil)
