package model

import "time"

// ClaimRecord marks one reward tier claimed for one player, server and day.
type ClaimRecord struct {
	Username   string     `db:"minecraft_username"`
	ServerName string     `db:"server_name"`
	Day        time.Time  `db:"day"`
	MinSteps   int64      `db:"min_steps"`
	Claimed    bool       `db:"claimed"`
	ClaimedAt  *time.Time `db:"claimed_at"`
}

// ClaimableReward is one tier a player may claim right now.
type ClaimableReward struct {
	Day      time.Time
	MinSteps int64
	Label    string
}

type ClaimResult struct {
	Claimed        bool
	ClaimedAt      time.Time
	AlreadyClaimed bool
}

// TierStatus is the claim state of one tier on one day.
type TierStatus struct {
	Day       time.Time
	MinSteps  int64
	Label     string
	Steps     int64
	Eligible  bool
	Claimed   bool
	ClaimedAt *time.Time
}
