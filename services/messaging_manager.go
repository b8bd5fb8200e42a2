package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"messenger-api/errs"
	"messenger-api/metrics"
	"messenger-api/models"
	"messenger-api/repositories"
	"messenger-api/utils"
)

const (
	emptyChatPreview = "Start a conversation"
	unknownUserName  = "Unknown User"
)

// MediaUpload is a file attached to the selected conversation.
type MediaUpload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// MessagingManager holds the chat list, the loaded transcripts and the
// selected conversation of one principal.
type MessagingManager struct {
	deps     *Dependencies
	identity *IdentityManager
	op       opState

	mu            sync.RWMutex
	chats         []models.Chat
	conversations map[string]*models.ConversationView
	selected      string
}

func NewMessagingManager(deps *Dependencies, identity *IdentityManager) *MessagingManager {
	return &MessagingManager{
		deps:          deps.withDefaults(),
		identity:      identity,
		op:            opState{domain: "messaging"},
		chats:         []models.Chat{},
		conversations: map[string]*models.ConversationView{},
	}
}

func (m *MessagingManager) Status() OpStatus { return m.op.Status() }

func (m *MessagingManager) Chats() []models.Chat {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Chat{}, m.chats...)
}

func (m *MessagingManager) SelectedChatID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.selected
}

// Conversation returns a loaded transcript without touching the store.
func (m *MessagingManager) Conversation(id string) (*models.ConversationView, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.conversations[id]
	if !ok {
		return nil, false
	}
	return v.Clone(), true
}

func (m *MessagingManager) RefreshChats(ctx context.Context) ([]models.Chat, error) {
	p, err := m.identity.requirePrincipal()
	if err != nil {
		return nil, m.op.fail(err)
	}
	m.op.begin()
	chats, err := m.refreshChats(ctx, p)
	return chats, m.op.end(err)
}

func (m *MessagingManager) refreshChats(ctx context.Context, p *models.Principal) ([]models.Chat, error) {
	convs, err := m.deps.Store.ListConversations(ctx, p.ID)
	if err != nil {
		return nil, storeError(err, "Failed to load conversations")
	}

	chats := make([]models.Chat, len(convs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.deps.SummaryConcurrency)
	for i := range convs {
		i := i
		g.Go(func() error {
			chat, err := m.summarize(gctx, p, &convs[i])
			if err != nil {
				return err
			}
			chats[i] = chat
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, storeError(err, "Failed to load conversations")
	}
	sortChats(chats)

	m.mu.Lock()
	m.chats = chats
	live := make(map[string]models.LastMessage, len(chats))
	for _, c := range chats {
		live[c.ID] = c.LastMessage
	}
	for id, view := range m.conversations {
		if last, ok := live[id]; !ok || !view.InSync(last) {
			delete(m.conversations, id)
		}
	}
	m.mu.Unlock()
	return m.Chats(), nil
}

// summarize builds the list entry of one conversation. Counterparty
// messages still marked sent are acknowledged as delivered on the way.
func (m *MessagingManager) summarize(ctx context.Context, p *models.Principal, conv *models.Conversation) (models.Chat, error) {
	chat := models.Chat{
		ID:           conv.ID,
		Name:         unknownUserName,
		LastActivity: conv.LastActivity,
		LastMessage: models.LastMessage{
			Content:   emptyChatPreview,
			Timestamp: conv.CreatedAt,
			Status:    models.MessageStatusSent,
		},
	}

	other, ok := conv.Counterparty(p.ID)
	if ok {
		if other.Profile.Name != "" {
			chat.Name = other.Profile.Name
		}
		chat.Avatar = other.Profile.Avatar()
		chat.IsOnline = m.isOnline(ctx, &other.Profile)

		if _, err := m.deps.Store.AdvanceStatus(ctx, conv.ID, other.UserID, models.MessageStatusDelivered); err != nil {
			return chat, err
		}
		unread, err := m.deps.Store.CountUnread(ctx, conv.ID, other.UserID)
		if err != nil {
			return chat, err
		}
		chat.UnreadCount = unread
	}

	last, err := m.deps.Store.LastMessage(ctx, conv.ID)
	if err != nil {
		return chat, err
	}
	if last != nil {
		chat.LastMessage = models.LastMessage{
			ID:        last.ID,
			Content:   last.Content,
			Timestamp: last.CreatedAt,
			Status:    last.Status,
			IsUnread:  last.SenderID != p.ID && last.Status != models.MessageStatusRead,
		}
	}
	return chat, nil
}

func (m *MessagingManager) isOnline(ctx context.Context, profile *models.Profile) bool {
	if m.deps.Presence != nil {
		return m.deps.Presence.IsOnline(ctx, profile.ID)
	}
	return profile.Presence() == models.PresenceOnline
}

func sortChats(chats []models.Chat) {
	sort.SliceStable(chats, func(i, j int) bool {
		return chats[i].LastActivity.After(chats[j].LastActivity)
	})
}

// SelectChat makes chatID the active conversation, loading its transcript
// when it is not cached or has unread messages. An empty id clears the
// selection.
func (m *MessagingManager) SelectChat(ctx context.Context, chatID string) (*models.ConversationView, error) {
	if chatID == "" {
		m.mu.Lock()
		m.selected = ""
		m.mu.Unlock()
		return nil, nil
	}
	p, err := m.identity.requirePrincipal()
	if err != nil {
		return nil, m.op.fail(err)
	}

	m.op.begin()
	view, err := m.open(ctx, p, chatID)
	if err != nil {
		return nil, m.op.end(err)
	}
	m.mu.Lock()
	m.selected = chatID
	m.mu.Unlock()
	return view, m.op.end(nil)
}

// OpenConversation returns a transcript, loading it when needed, without
// moving the selection.
func (m *MessagingManager) OpenConversation(ctx context.Context, chatID string) (*models.ConversationView, error) {
	p, err := m.identity.requirePrincipal()
	if err != nil {
		return nil, m.op.fail(err)
	}
	m.op.begin()
	view, err := m.open(ctx, p, chatID)
	return view, m.op.end(err)
}

func (m *MessagingManager) open(ctx context.Context, p *models.Principal, chatID string) (*models.ConversationView, error) {
	m.mu.RLock()
	cached, ok := m.conversations[chatID]
	fresh := ok && m.unreadLocked(chatID) == 0
	m.mu.RUnlock()
	if fresh {
		return cached.Clone(), nil
	}
	return m.loadConversation(ctx, p, chatID)
}

func (m *MessagingManager) unreadLocked(chatID string) int64 {
	for _, c := range m.chats {
		if c.ID == chatID {
			return c.UnreadCount
		}
	}
	return 0
}

// loadConversation fetches the transcript and marks the counterparty's
// messages read before listing them.
func (m *MessagingManager) loadConversation(ctx context.Context, p *models.Principal, chatID string) (*models.ConversationView, error) {
	conv, err := m.deps.Store.GetConversation(ctx, chatID)
	if err != nil {
		return nil, storeError(err, "Conversation not found")
	}
	if !conv.HasParticipant(p.ID) {
		return nil, errs.New(errs.KindAuthorization, "You are not a participant in this conversation")
	}

	view := &models.ConversationView{ID: conv.ID, Messages: []models.MessageView{}}
	if other, ok := conv.Counterparty(p.ID); ok {
		if _, err := m.deps.Store.AdvanceStatus(ctx, conv.ID, other.UserID, models.MessageStatusRead); err != nil {
			return nil, storeError(err, "Failed to mark messages as read")
		}
		lastSeen := m.deps.Now()
		if other.Profile.LastSeen != nil {
			lastSeen = *other.Profile.LastSeen
		}
		status := other.Profile.Presence()
		if m.deps.Presence != nil {
			status = m.deps.Presence.Status(ctx, other.UserID)
		}
		name := other.Profile.Name
		if name == "" {
			name = unknownUserName
		}
		view.Recipient = models.Recipient{
			ID:       other.UserID,
			Name:     name,
			Avatar:   other.Profile.Avatar(),
			Status:   status,
			LastSeen: lastSeen,
		}
	}

	msgs, err := m.deps.Store.ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, storeError(err, "Failed to load messages")
	}
	for i := range msgs {
		view.Messages = append(view.Messages, msgs[i].View(p.ID))
	}

	m.mu.Lock()
	m.conversations[conv.ID] = view
	for i := range m.chats {
		if m.chats[i].ID != conv.ID {
			continue
		}
		m.chats[i].UnreadCount = 0
		m.chats[i].LastMessage.IsUnread = false
		if n := len(view.Messages); n > 0 && view.Messages[n-1].ID == m.chats[i].LastMessage.ID {
			m.chats[i].LastMessage.Status = view.Messages[n-1].Status
		}
	}
	m.mu.Unlock()
	return view.Clone(), nil
}

func (m *MessagingManager) requireSelection() (string, error) {
	id := m.SelectedChatID()
	if id == "" {
		return "", errs.New(errs.KindValidation, "Select a conversation first")
	}
	return id, nil
}

// SendMessage appends text to the selected conversation. Blank text is
// ignored and returns nil, nil.
func (m *MessagingManager) SendMessage(ctx context.Context, text string) (*models.MessageView, error) {
	p, err := m.identity.requirePrincipal()
	if err != nil {
		return nil, m.op.fail(err)
	}
	chatID, err := m.requireSelection()
	if err != nil {
		return nil, m.op.fail(err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	m.op.begin()
	unlock := m.deps.Locks.Lock(chatID)
	defer unlock()

	msg := &models.Message{
		ID:             m.deps.NewID(),
		ConversationID: chatID,
		SenderID:       p.ID,
		Content:        text,
		Status:         models.MessageStatusSent,
		CreatedAt:      m.deps.Now(),
	}
	if err := m.persist(ctx, msg); err != nil {
		return nil, m.op.end(errs.Wrap(errs.KindSend, err, "Failed to send message"))
	}
	metrics.MessageSent("text")

	view := m.applySent(p, msg)
	return &view, m.op.end(nil)
}

// AttachMedia uploads a file and posts it as a message in the selected
// conversation. When the message cannot be written the upload is deleted.
func (m *MessagingManager) AttachMedia(ctx context.Context, upload MediaUpload) (*models.MessageView, error) {
	p, err := m.identity.requirePrincipal()
	if err != nil {
		return nil, m.op.fail(err)
	}
	chatID, err := m.requireSelection()
	if err != nil {
		return nil, m.op.fail(err)
	}
	if upload.Body == nil {
		return nil, m.op.fail(errs.New(errs.KindValidation, "No file provided"))
	}

	m.op.begin()
	if err := m.mediaAllowed(ctx); err != nil {
		return nil, m.op.end(err)
	}

	unlock := m.deps.Locks.Lock(chatID)
	defer unlock()

	now := m.deps.Now()
	kind := models.MediaKindFor(upload.ContentType)
	key := fmt.Sprintf("media/%s/%d-%s", chatID, now.UnixMilli(), utils.SanitizeFileName(upload.Name))

	url, err := m.deps.Blobs.Upload(ctx, key, upload.Body, upload.Size, upload.ContentType)
	if err != nil {
		return nil, m.op.end(errs.Wrap(errs.KindUpload, err, "Failed to upload file"))
	}

	msg := &models.Message{
		ID:             m.deps.NewID(),
		ConversationID: chatID,
		SenderID:       p.ID,
		Content:        fmt.Sprintf("Sent a %s", kind),
		Status:         models.MessageStatusSent,
		Media: models.MediaList{{
			Type: kind,
			URL:  url,
			Name: upload.Name,
			Size: upload.Size,
		}},
		CreatedAt: now,
	}
	if err := m.persist(ctx, msg); err != nil {
		if delErr := m.deps.Blobs.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			m.deps.Log.Error("orphaned media blob after failed message write",
				zap.String("key", key), zap.Error(err), zap.NamedError("cleanup_error", delErr))
		}
		return nil, m.op.end(errs.Wrap(errs.KindSend, err, "Failed to send attachment"))
	}
	metrics.MessageSent("media")

	view := m.applySent(p, msg)
	return &view, m.op.end(nil)
}

func (m *MessagingManager) mediaAllowed(ctx context.Context) error {
	feature, err := m.deps.Store.GetFeatureByName(ctx, models.FeatureMediaAttachments)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil
	}
	if err != nil {
		return storeError(err, "Failed to check media settings")
	}
	if !feature.Enabled {
		return errs.New(errs.KindAuthorization, "Media attachments are disabled")
	}
	return nil
}

// persist writes msg and bumps the conversation activity together.
func (m *MessagingManager) persist(ctx context.Context, msg *models.Message) error {
	return m.deps.Store.Transaction(ctx, func(tx repositories.Store) error {
		if err := tx.CreateMessage(ctx, msg); err != nil {
			return err
		}
		return tx.TouchConversation(ctx, msg.ConversationID, msg.CreatedAt)
	})
}

// applySent folds a persisted message into the cached transcript and the
// chat summary, then re-sorts the chat list.
func (m *MessagingManager) applySent(p *models.Principal, msg *models.Message) models.MessageView {
	view := msg.View(p.ID)
	view.Sender.Name = p.Name
	view.Sender.Avatar = p.Avatar

	m.mu.Lock()
	defer m.mu.Unlock()
	if conv, ok := m.conversations[msg.ConversationID]; ok {
		conv.Messages = append(conv.Messages, view)
	}
	for i := range m.chats {
		if m.chats[i].ID != msg.ConversationID {
			continue
		}
		m.chats[i].LastMessage = models.LastMessage{
			ID:        msg.ID,
			Content:   msg.Content,
			Timestamp: msg.CreatedAt,
			Status:    msg.Status,
		}
		m.chats[i].LastActivity = msg.CreatedAt
	}
	sortChats(m.chats)
	return view
}

// CreateConversation returns the conversation shared with recipientID,
// creating it with both participants when it does not exist yet.
func (m *MessagingManager) CreateConversation(ctx context.Context, recipientID string) (string, error) {
	p, err := m.identity.requirePrincipal()
	if err != nil {
		return "", m.op.fail(err)
	}
	if recipientID == "" || recipientID == p.ID {
		return "", m.op.fail(errs.New(errs.KindValidation, "Choose someone else to talk to"))
	}

	m.op.begin()
	id, err := m.findOrCreate(ctx, p, recipientID)
	if err != nil {
		return "", m.op.end(err)
	}
	if _, err := m.refreshChats(ctx, p); err != nil {
		return id, m.op.end(err)
	}
	return id, m.op.end(nil)
}

func (m *MessagingManager) findOrCreate(ctx context.Context, p *models.Principal, recipientID string) (string, error) {
	if _, err := m.deps.Store.GetProfile(ctx, recipientID); err != nil {
		return "", storeError(err, "User not found")
	}

	key := models.PairKey(p.ID, recipientID)
	unlock := m.deps.Locks.Lock("pair:" + key)
	defer unlock()

	existing, err := m.deps.Store.FindConversationByPair(ctx, key)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return "", storeError(err, "Failed to look up conversation")
	}

	now := m.deps.Now()
	conv := &models.Conversation{
		ID:           m.deps.NewID(),
		PairKey:      key,
		CreatedBy:    p.ID,
		LastActivity: now,
		CreatedAt:    now,
	}
	err = m.deps.Store.Transaction(ctx, func(tx repositories.Store) error {
		return tx.CreateConversation(ctx, conv, []string{p.ID, recipientID})
	})
	if errors.Is(err, repositories.ErrDuplicate) {
		// Another instance created it first.
		existing, err := m.deps.Store.FindConversationByPair(ctx, key)
		if err != nil {
			return "", storeError(err, "Failed to look up conversation")
		}
		return existing.ID, nil
	}
	if err != nil {
		return "", storeError(err, "Failed to create conversation")
	}
	m.deps.Log.Info("conversation created", zap.String("conversation_id", conv.ID), zap.String("created_by", p.ID))
	return conv.ID, nil
}

// FlagMessage reports a counterparty message for moderation.
func (m *MessagingManager) FlagMessage(ctx context.Context, messageID, reason string, severity models.FlagSeverity) error {
	p, err := m.identity.requirePrincipal()
	if err != nil {
		return m.op.fail(err)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return m.op.fail(errs.New(errs.KindValidation, "A reason is required"))
	}
	if severity == "" {
		severity = models.SeverityLow
	}
	if !severity.Valid() {
		return m.op.fail(errs.Newf(errs.KindValidation, "Unknown severity %q", severity))
	}

	m.op.begin()
	msg, err := m.deps.Store.GetMessage(ctx, messageID)
	if err != nil {
		return m.op.end(storeError(err, "Message not found"))
	}
	conv, err := m.deps.Store.GetConversation(ctx, msg.ConversationID)
	if err != nil {
		return m.op.end(storeError(err, "Conversation not found"))
	}
	if !conv.HasParticipant(p.ID) {
		return m.op.end(errs.New(errs.KindAuthorization, "You are not a participant in this conversation"))
	}
	if msg.SenderID == p.ID {
		return m.op.end(errs.New(errs.KindValidation, "You cannot report your own message"))
	}
	if err := m.deps.Store.FlagMessage(ctx, messageID, reason, severity); err != nil {
		return m.op.end(storeError(err, "Failed to report message"))
	}
	m.deps.Log.Info("message flagged", zap.String("message_id", messageID),
		zap.String("reporter_id", p.ID), zap.String("severity", string(severity)))
	return m.op.end(nil)
}
