package cats

import (
	"errors"
	"fmt"
	"strings"
)

// Task types handled by the farmer.
const (
	TaskOpenLink           = "OPEN_LINK"
	TaskSubscribeToChannel = "SUBSCRIBE_TO_CHANNEL"
)

const channelURLPrefix = "https://t.me/"

// User is the account summary returned by GET /user.
type User struct {
	ID                int64   `json:"id"`
	Username          string  `json:"username"`
	FirstName         string  `json:"firstName"`
	TelegramAge       float64 `json:"telegramAge"`
	TelegramAgeReward int64   `json:"telegramAgeReward"`
	ReferrerReward    int64   `json:"referrerReward"`
	TasksReward       int64   `json:"tasksReward"`
	TotalRewards      int64   `json:"totalRewards"`
}

type TaskParams struct {
	ChannelURL string `json:"channelUrl"`
}

type Task struct {
	ID           int64      `json:"id"`
	Title        string     `json:"title"`
	Type         string     `json:"type"`
	Completed    bool       `json:"completed"`
	RewardPoints int64      `json:"rewardPoints"`
	Params       TaskParams `json:"params"`
}

type tasksResponse struct {
	Tasks []Task `json:"tasks"`
}

type completeResponse struct {
	Success bool `json:"success"`
}

type checkResponse struct {
	Completed bool `json:"completed"`
}

type ipResponse struct {
	Origin string `json:"origin"`
}

// PendingOfType returns incomplete tasks of type typ in server order.
func PendingOfType(tasks []Task, typ string) []Task {
	var out []Task
	for _, t := range tasks {
		if t.Type == typ && !t.Completed {
			out = append(out, t)
		}
	}
	return out
}

// ChannelUsername extracts the public username from a t.me channel link.
func ChannelUsername(channelURL string) (string, error) {
	name, ok := strings.CutPrefix(channelURL, channelURLPrefix)
	if !ok {
		return "", fmt.Errorf("cats: not a t.me link: %q", channelURL)
	}
	name = strings.Trim(name, "/")
	if name == "" {
		return "", errors.New("cats: t.me link without username")
	}
	return name, nil
}
