// Package user defines the user record handed across the native boundary.
// A User always owns its name; callers only ever see it through a borrowed NameView.
package user

// User represents a record created on behalf of a host application.
type User struct {
	// ID is the caller-supplied identifier.
	ID int32

	name []byte
}

// New copies name into a buffer owned by the returned User.
// The caller may reuse or free name as soon as New returns.
func New(id int32, name []byte) *User {
	owned := make([]byte, len(name))
	copy(owned, name)

	return &User{
		ID:   id,
		name: owned,
	}
}

// Name returns a borrowed view of the owned name buffer.
func (u *User) Name() NameView {
	return NameView{b: u.name}
}

// NameView is a read-only view over a User's name. It is valid only while the
// User it was obtained from has not been released.
type NameView struct {
	b []byte
}

// Len returns the number of bytes in the name.
func (v NameView) Len() int {
	return len(v.b)
}

// String returns a copy of the name as a string.
func (v NameView) String() string {
	return string(v.b)
}

// Bytes returns a copy of the name.
func (v NameView) Bytes() []byte {
	out := make([]byte, len(v.b))
	copy(out, v.b)

	return out
}
