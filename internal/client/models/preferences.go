package models

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

type TextDirection string

const (
	DirLTR TextDirection = "ltr"
	DirRTL TextDirection = "rtl"
)

type ViewMode string

const (
	ViewGrid ViewMode = "grid"
	ViewList ViewMode = "list"
)

type NotificationKind string

const (
	NotifySuccess NotificationKind = "success"
	NotifyError   NotificationKind = "error"
	NotifyInfo    NotificationKind = "info"
)

// Notification is a transient toast.
type Notification struct {
	ID      int
	Kind    NotificationKind
	Message string
}
