// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの権限種別を表す。
type Role string

const (
	// RoleCustomer は一般顧客。
	RoleCustomer Role = "customer"
	// RoleAdmin は管理画面にアクセスできる管理者。
	RoleAdmin Role = "admin"
)

// User は登録済みの顧客を表す。
// 登録後は変更されない。Emailは正規化（前後空白除去・小文字化）済みの値を保持する。
type User struct {
	ID           int64
	Name         string
	Email        string
	Phone        string
	PasswordHash []byte
	Role         Role
	CreatedAt    time.Time
}

// IsAdmin は管理者権限を持つかどうかを返す。
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// LoginEvent はログイン成功の監査ログ1件を表す。
type LoginEvent struct {
	ID        int64
	UserID    int64
	UserName  string
	Email     string
	LoginTime time.Time
}
