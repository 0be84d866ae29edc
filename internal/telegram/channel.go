package telegram

import (
	"context"
	"fmt"
)

// JoinChannel subscribes the account to a public channel.
func (s *Session) JoinChannel(ctx context.Context, username string) error {
	return s.Do(ctx, func(ctx context.Context, api API) error {
		res, err := s.resolve(ctx, api, username)
		if err != nil {
			return err
		}
		ch, err := resolvedChannel(res)
		if err != nil {
			return err
		}
		if _, err := api.ChannelsJoinChannel(ctx, ch); err != nil {
			return fmt.Errorf("join @%s: %w", username, err)
		}
		return nil
	})
}

// LeaveChannel unsubscribes the account from a public channel.
func (s *Session) LeaveChannel(ctx context.Context, username string) error {
	return s.Do(ctx, func(ctx context.Context, api API) error {
		res, err := s.resolve(ctx, api, username)
		if err != nil {
			return err
		}
		ch, err := resolvedChannel(res)
		if err != nil {
			return err
		}
		if _, err := api.ChannelsLeaveChannel(ctx, ch); err != nil {
			return fmt.Errorf("leave @%s: %w", username, err)
		}
		return nil
	})
}
