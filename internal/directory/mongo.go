package directory

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoDirectory implements PrincipalResolver and MembershipResolver over
// the host application's document store (users, students, groups).
type MongoDirectory struct {
	users    *mongo.Collection
	students *mongo.Collection
	groups   *mongo.Collection
}

var (
	_ PrincipalResolver  = (*MongoDirectory)(nil)
	_ MembershipResolver = (*MongoDirectory)(nil)
)

func NewMongoDirectory(db *mongo.Database) *MongoDirectory {
	return &MongoDirectory{
		users:    db.Collection("users"),
		students: db.Collection("students"),
		groups:   db.Collection("groups"),
	}
}

type userDoc struct {
	ID    primitive.ObjectID `bson:"_id"`
	Name  string             `bson:"name"`
	Email string             `bson:"email"`
}

type studentDoc struct {
	ID       primitive.ObjectID `bson:"_id"`
	UserID   primitive.ObjectID `bson:"user_id"`
	FullName string             `bson:"full_name"`
}

type memberDoc struct {
	StudentID primitive.ObjectID `bson:"student_id"`
	Role      string             `bson:"role"`
	Active    bool               `bson:"active"`
}

type groupDoc struct {
	ID        primitive.ObjectID `bson:"_id"`
	ProjectID primitive.ObjectID `bson:"project_id,omitempty"`
	Status    string             `bson:"status"` // "forming" | "finalized" | "disbanded"
	Members   []memberDoc        `bson:"members"`
}

func (d *MongoDirectory) Resolve(ctx context.Context, subject string) (*Principal, error) {
	uid, err := primitive.ObjectIDFromHex(subject)
	if err != nil {
		return nil, fmt.Errorf("malformed subject %q: %w", subject, ErrNotFound)
	}

	var user userDoc
	if err := d.users.FindOne(ctx, bson.M{"_id": uid}).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("user lookup: %w", err)
	}

	p := &Principal{
		ID:    user.ID.Hex(),
		Name:  user.Name,
		Email: user.Email,
	}

	// A missing student profile is not an error; the principal may be
	// faculty or admin.
	var student studentDoc
	err = d.students.FindOne(ctx, bson.M{"user_id": uid}).Decode(&student)
	switch {
	case err == nil:
		p.StudentID = student.ID.Hex()
		if student.FullName != "" {
			p.Name = student.FullName
		}
	case errors.Is(err, mongo.ErrNoDocuments):
	default:
		return nil, fmt.Errorf("student lookup: %w", err)
	}

	return p, nil
}

func (d *MongoDirectory) ResolveByStudent(ctx context.Context, studentID string) (*Principal, error) {
	sid, err := primitive.ObjectIDFromHex(studentID)
	if err != nil {
		return nil, fmt.Errorf("malformed student id %q: %w", studentID, ErrNotFound)
	}

	var student studentDoc
	if err := d.students.FindOne(ctx, bson.M{"_id": sid}).Decode(&student); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("student lookup: %w", err)
	}

	var user userDoc
	if err := d.users.FindOne(ctx, bson.M{"_id": student.UserID}).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("user lookup: %w", err)
	}

	name := user.Name
	if student.FullName != "" {
		name = student.FullName
	}
	return &Principal{
		ID:        user.ID.Hex(),
		Name:      name,
		Email:     user.Email,
		StudentID: student.ID.Hex(),
	}, nil
}

func (d *MongoDirectory) ActiveMembership(ctx context.Context, p *Principal) (*Membership, error) {
	sid, ok := studentObjectID(p)
	if !ok {
		return nil, nil
	}

	var group groupDoc
	err := d.groups.FindOne(ctx, bson.M{
		"status":  bson.M{"$ne": "disbanded"},
		"members": bson.M{"$elemMatch": bson.M{"student_id": sid, "active": true}},
	}).Decode(&group)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("group lookup: %w", err)
	}

	m := &Membership{GroupID: group.ID.Hex()}
	if !group.ProjectID.IsZero() {
		m.ProjectID = group.ProjectID.Hex()
	}
	return m, nil
}

func (d *MongoDirectory) IsActiveMember(ctx context.Context, p *Principal, groupID string) (bool, error) {
	sid, ok := studentObjectID(p)
	if !ok {
		return false, nil
	}
	gid, err := primitive.ObjectIDFromHex(groupID)
	if err != nil {
		return false, nil
	}

	err = d.groups.FindOne(ctx, bson.M{
		"_id":     gid,
		"status":  bson.M{"$ne": "disbanded"},
		"members": bson.M{"$elemMatch": bson.M{"student_id": sid, "active": true}},
	}).Err()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, fmt.Errorf("membership check: %w", err)
	}
	return true, nil
}

func (d *MongoDirectory) IsProjectCollaborator(ctx context.Context, p *Principal, projectID string) (bool, error) {
	sid, ok := studentObjectID(p)
	if !ok {
		return false, nil
	}
	pid, err := primitive.ObjectIDFromHex(projectID)
	if err != nil {
		return false, nil
	}

	err = d.groups.FindOne(ctx, bson.M{
		"project_id": pid,
		"status":     bson.M{"$ne": "disbanded"},
		"members":    bson.M{"$elemMatch": bson.M{"student_id": sid, "active": true}},
	}).Err()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, fmt.Errorf("collaborator check: %w", err)
	}
	return true, nil
}

func studentObjectID(p *Principal) (primitive.ObjectID, bool) {
	if p == nil || p.StudentID == "" {
		return primitive.ObjectID{}, false
	}
	sid, err := primitive.ObjectIDFromHex(p.StudentID)
	if err != nil {
		return primitive.ObjectID{}, false
	}
	return sid, true
}
