// Package domain defines the persistence models for users, chat rooms, and
// messages. These types are mapped with GORM and form the core data layer
// of the clinic messaging service.
package domain

import (
	"time"
)

// User roles recognized by the messaging core. Identity issuance and role
// assignment happen upstream; this layer only reads them.
const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
	RoleAdmin   = "admin"
)

// Message kinds. Text messages carry content; image and file messages may
// carry empty content alongside an attachment reference.
const (
	KindText  = "text"
	KindImage = "image"
	KindFile  = "file"
)

// previewRunes caps the number of characters shown in a message preview.
const previewRunes = 50

// User is a read-only projection of an upstream account. The messaging core
// needs the display name and role to enrich outbound events; it never
// creates or mutates accounts outside of test seeding.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - FullName: display name shown to the other participant.
//   - Role: "patient", "doctor", or "admin" (enforced by DB constraint).
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type User struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	FullName  string    `json:"full_name"  gorm:"type:varchar(255);not null"`
	Role      string    `json:"role"       gorm:"type:varchar(16);not null;check:role IN ('patient','doctor','admin')"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// ChatRoom is the messaging context bound 1:1 to one appointment. Exactly two
// non-admin identities (the patient and the doctor) participate; admins may
// observe any room.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - AppointmentID: opaque reference to the owning appointment; unique so
//     that at most one room can ever exist per appointment.
//   - PatientID / DoctorID: the two participant identities, fixed at creation.
//   - IsActive: cleared only through an explicit external retire signal;
//     a room is never deleted while its appointment exists.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type ChatRoom struct {
	ID            string    `json:"id"             gorm:"type:char(36);primaryKey"`
	AppointmentID string    `json:"appointment_id" gorm:"type:varchar(64);not null;uniqueIndex:ux_room_appointment"`
	PatientID     string    `json:"patient_id"     gorm:"type:char(36);not null;index:idx_room_patient"`
	DoctorID      string    `json:"doctor_id"      gorm:"type:char(36);not null;index:idx_room_doctor"`
	IsActive      bool      `json:"is_active"      gorm:"not null;default:true"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName returns the database table name for ChatRoom.
func (ChatRoom) TableName() string { return "chat_rooms" }

// HasParticipant reports whether userID is the room's patient or doctor.
func (r *ChatRoom) HasParticipant(userID string) bool {
	return userID == r.PatientID || userID == r.DoctorID
}

// Message is a single utterance within a room, authored by one of the room's
// participants. Messages are totally ordered per room by (CreatedAt, Seq);
// once persisted, a message's position never changes.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - RoomID: foreign key to the owning room (indexed with CreatedAt).
//   - SenderID: identity of the author.
//   - Kind: "text", "image", or "file" (enforced by DB constraint).
//   - Content: message text; may be empty only for attachment-bearing kinds.
//   - Attachment: optional opaque reference to an uploaded file or image.
//   - IsRead: set only by a participant other than the sender.
//   - Seq: per-room monotonic sequence; breaks ties between messages that
//     share a creation timestamp so ordering can never invert.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type Message struct {
	ID         string    `json:"id"                   gorm:"type:char(36);primaryKey"`
	RoomID     string    `json:"room_id"              gorm:"type:char(36);not null;index:idx_room_msgs,priority:1"`
	SenderID   string    `json:"sender_id"            gorm:"type:char(36);not null;index"`
	Kind       string    `json:"kind"                 gorm:"type:varchar(10);not null;default:'text';check:kind IN ('text','image','file')"`
	Content    string    `json:"content"              gorm:"type:text"`
	Attachment string    `json:"attachment,omitempty" gorm:"type:varchar(512)"`
	IsRead     bool      `json:"is_read"              gorm:"not null;default:false"`
	Seq        int64     `json:"seq"                  gorm:"not null;index:idx_room_msgs,priority:3"`
	CreatedAt  time.Time `json:"created_at"           gorm:"index:idx_room_msgs,priority:2"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Room is the parent conversation. Messages are cascade-deleted if their
	// room is ever removed by an upstream migration.
	Room ChatRoom `json:"-" gorm:"foreignKey:RoomID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Preview derives a short display string from a persisted message. Text
// content is clipped to the first 50 characters with a trailing ellipsis;
// attachment kinds get a fixed label. The helper has no storage side effect.
func (m *Message) Preview() string {
	switch m.Kind {
	case KindText:
		runes := []rune(m.Content)
		if len(runes) > previewRunes {
			return string(runes[:previewRunes]) + "..."
		}
		return m.Content
	case KindImage:
		return "Image attachment"
	case KindFile:
		return "File attachment"
	}
	return "Message"
}
