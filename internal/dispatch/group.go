package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"trustchat/internal/models"
	"trustchat/internal/observability"
	"trustchat/internal/repositories"
)

// CreateGroup creates a group administered by founder. The founder is always a
// member; duplicates collapse. Every member online receives addedToGroup.
func (e *Engine) CreateGroup(ctx context.Context, founder, name string, memberIDs []string) (models.ResolvedGroup, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.ResolvedGroup{}, fmt.Errorf("%w: group name is required", ErrValidation)
	}
	requested := lo.Compact(lo.Map(memberIDs, func(id string, _ int) string { return strings.TrimSpace(id) }))
	if len(requested) == 0 {
		return models.ResolvedGroup{}, fmt.Errorf("%w: at least one member is required", ErrValidation)
	}
	members := lo.Uniq(append([]string{founder}, requested...))

	group, err := e.groups.Create(ctx, models.ChatGroup{Name: name, Admin: founder, Members: members})
	if err != nil {
		return models.ResolvedGroup{}, fmt.Errorf("store group: %w", err)
	}
	resolved, err := e.resolveGroup(ctx, group)
	if err != nil {
		return models.ResolvedGroup{}, err
	}

	for _, id := range group.Members {
		e.notifier.SendToUser(id, models.Event{Type: models.EventAddedToGroup, Data: resolved})
	}
	return resolved, nil
}

// JoinGroup adds userID to the group and notifies only the joiner. Existing
// members are not told about the newcomer, unlike CreateGroup and UpdateGroup.
func (e *Engine) JoinGroup(ctx context.Context, userID, groupID string) (models.ResolvedGroup, error) {
	group, err := e.loadGroup(ctx, groupID)
	if err != nil {
		return models.ResolvedGroup{}, err
	}
	if group.IsMember(userID) {
		return models.ResolvedGroup{}, fmt.Errorf("%w: group %s", ErrAlreadyMember, groupID)
	}
	if err := e.groups.AddMember(ctx, groupID, userID); err != nil {
		if errors.Is(err, repositories.ErrAlreadyMember) {
			return models.ResolvedGroup{}, fmt.Errorf("%w: group %s", ErrAlreadyMember, groupID)
		}
		return models.ResolvedGroup{}, fmt.Errorf("add member: %w", err)
	}

	group, err = e.loadGroup(ctx, groupID)
	if err != nil {
		return models.ResolvedGroup{}, err
	}
	resolved, err := e.resolveGroup(ctx, group)
	if err != nil {
		return models.ResolvedGroup{}, err
	}
	e.notifier.SendToUser(userID, models.Event{Type: models.EventAddedToGroup, Data: resolved})
	return resolved, nil
}

// UpdateGroup applies an admin's changes to name and picture, then tells every
// member with a live connection. Members need not have joined the group room.
func (e *Engine) UpdateGroup(ctx context.Context, actorID, groupID string, patch models.GroupPatch) (models.ResolvedGroup, error) {
	group, err := e.loadGroup(ctx, groupID)
	if err != nil {
		return models.ResolvedGroup{}, err
	}
	if group.Admin != actorID {
		return models.ResolvedGroup{}, fmt.Errorf("%w: only the admin can update group details", ErrForbidden)
	}

	var name, pic *string
	if patch.Name != nil && strings.TrimSpace(*patch.Name) != "" {
		trimmed := strings.TrimSpace(*patch.Name)
		name = &trimmed
	}
	if patch.GroupPic != nil && strings.TrimSpace(*patch.GroupPic) != "" {
		url, err := e.uploadImage(ctx, *patch.GroupPic)
		if err != nil {
			return models.ResolvedGroup{}, err
		}
		pic = &url
	}

	if name != nil || pic != nil {
		if group, err = e.groups.Update(ctx, groupID, name, pic); err != nil {
			if errors.Is(err, repositories.ErrGroupNotFound) {
				return models.ResolvedGroup{}, fmt.Errorf("%w: group %s", ErrNotFound, groupID)
			}
			return models.ResolvedGroup{}, fmt.Errorf("update group: %w", err)
		}
	}
	resolved, err := e.resolveGroup(ctx, group)
	if err != nil {
		return models.ResolvedGroup{}, err
	}

	for _, id := range group.Members {
		e.notifier.SendToUser(id, models.Event{Type: models.EventGroupUpdated, Data: resolved})
	}
	return resolved, nil
}

// SendGroup persists a group message and broadcasts it to the group room. Only
// connections that joined the room see it live; everyone can fetch it later.
func (e *Engine) SendGroup(ctx context.Context, senderID, groupID string, content Content) (models.Message, error) {
	if err := validateContent(content); err != nil {
		return models.Message{}, err
	}
	group, err := e.loadGroup(ctx, groupID)
	if err != nil {
		return models.Message{}, err
	}
	if !group.IsMember(senderID) {
		return models.Message{}, fmt.Errorf("%w: not a member of group %s", ErrForbidden, groupID)
	}
	draft, err := models.NewGroupMessage(senderID, groupID, content.Text, "")
	if err != nil {
		return models.Message{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if draft.Image, err = e.uploadImage(ctx, content.Image); err != nil {
		return models.Message{}, err
	}

	saved, err := e.messages.Create(ctx, draft)
	if err != nil {
		return models.Message{}, fmt.Errorf("store message: %w", err)
	}
	saved = e.enrichOne(ctx, saved)

	n := e.notifier.BroadcastRoom(models.GroupRoom(groupID), models.Event{Type: models.EventNewGroupMessage, Data: saved})
	observability.IncMessageSent("group", n > 0)

	e.schedule(saved)
	return saved, nil
}

// GetGroupMessages returns the group's history, oldest first. Only members
// may read it.
func (e *Engine) GetGroupMessages(ctx context.Context, userID, groupID string) ([]models.Message, error) {
	group, err := e.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.IsMember(userID) {
		return nil, fmt.Errorf("%w: not a member of group %s", ErrForbidden, groupID)
	}
	msgs, err := e.messages.ListGroupMessages(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("load group messages: %w", err)
	}
	return e.enrich(ctx, msgs), nil
}

// ListGroups returns the groups userID belongs to, most recently updated first.
func (e *Engine) ListGroups(ctx context.Context, userID string) ([]models.ResolvedGroup, error) {
	groups, err := e.groups.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	ids := lo.Uniq(lo.FlatMap(groups, func(g models.ChatGroup, _ int) []string { return g.Members }))
	users, err := e.users.Resolve(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve members: %w", err)
	}
	return lo.Map(groups, func(g models.ChatGroup, _ int) models.ResolvedGroup {
		return withMembers(g, users)
	}), nil
}

func (e *Engine) loadGroup(ctx context.Context, groupID string) (models.ChatGroup, error) {
	group, err := e.groups.Get(ctx, groupID)
	if errors.Is(err, repositories.ErrGroupNotFound) {
		return models.ChatGroup{}, fmt.Errorf("%w: group %s", ErrNotFound, groupID)
	}
	if err != nil {
		return models.ChatGroup{}, fmt.Errorf("load group: %w", err)
	}
	return group, nil
}

func (e *Engine) resolveGroup(ctx context.Context, group models.ChatGroup) (models.ResolvedGroup, error) {
	users, err := e.users.Resolve(ctx, group.Members)
	if err != nil {
		return models.ResolvedGroup{}, fmt.Errorf("resolve members: %w", err)
	}
	return withMembers(group, users), nil
}

func withMembers(group models.ChatGroup, users map[string]models.Sender) models.ResolvedGroup {
	members := make([]models.Sender, 0, len(group.Members))
	for _, id := range group.Members {
		if u, ok := users[id]; ok {
			members = append(members, u)
		} else {
			members = append(members, models.Sender{ID: id})
		}
	}
	return models.ResolvedGroup{ChatGroup: group, Members: members}
}
