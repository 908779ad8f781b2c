package chat

import (
	"context"
	"testing"
)

type fakeStore struct {
	created  *CreateParams
	messages []Message
}

func (f *fakeStore) Create(ctx context.Context, params CreateParams) (Message, error) {
	f.created = &params
	return Message{ID: "msg1", SenderID: params.SenderID, ReceiverID: params.ReceiverID, Body: params.Body, Type: params.Type}, nil
}

func (f *fakeStore) List(ctx context.Context, filters Filters) ([]Message, error) {
	return f.messages, nil
}

func TestSend_Validation(t *testing.T) {
	svc := NewService(&fakeStore{})

	cases := []struct {
		name   string
		params CreateParams
	}{
		{"missing sender", CreateParams{ReceiverID: "u2", Body: "hello", Type: SenderUser}},
		{"missing receiver", CreateParams{SenderID: "u1", Body: "hello", Type: SenderUser}},
		{"blank body", CreateParams{SenderID: "u1", ReceiverID: "u2", Body: "   ", Type: SenderUser}},
		{"unknown sender type", CreateParams{SenderID: "u1", ReceiverID: "u2", Body: "hello", Type: "bot"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Send(context.Background(), tc.params); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestSend_Success(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store)

	msg, err := svc.Send(context.Background(), CreateParams{
		SenderID:   "m1",
		ReceiverID: "admin1",
		Body:       "please review my block",
		Type:       SenderMitra,
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if msg.ID == "" {
		t.Errorf("expected stored message id")
	}
	if store.created == nil || store.created.Type != SenderMitra {
		t.Errorf("unexpected stored params: %+v", store.created)
	}
}
