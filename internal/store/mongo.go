package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	usersCollection  = "users"
	offersCollection = "offers"
)

type userDocument struct {
	ID               primitive.ObjectID `bson:"_id,omitempty"`
	Email            string             `bson:"email"`
	PushMessageToken string             `bson:"pushMessageToken,omitempty"`
	MailAuthCode     int                `bson:"mailAuthCode"`
	LastCodeRequest  time.Time          `bson:"lastCodeRequest"`
	CreatedAt        time.Time          `bson:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt"`
}

func (d *userDocument) toUser() *User {
	return &User{
		ID:               d.ID.Hex(),
		Email:            d.Email,
		PushMessageToken: d.PushMessageToken,
		MailAuthCode:     d.MailAuthCode,
		LastCodeRequest:  d.LastCodeRequest.UTC(),
		CreatedAt:        d.CreatedAt.UTC(),
		UpdatedAt:        d.UpdatedAt.UTC(),
	}
}

type offerDocument struct {
	ID            primitive.ObjectID   `bson:"_id,omitempty"`
	UserMail      primitive.ObjectID   `bson:"userMail"`
	AcceptingUser []primitive.ObjectID `bson:"acceptingUser"`
	Subject       string               `bson:"subject"`
	Topic         []string             `bson:"topic"`
	Year          int                  `bson:"year"`
	EndDate       time.Time            `bson:"endDate"`
	IsAccepted    bool                 `bson:"isAccepted"`
	CreatedAt     time.Time            `bson:"createdAt"`
	UpdatedAt     time.Time            `bson:"updatedAt"`
}

func (d *offerDocument) toOffer() *Offer {
	accepting := make([]string, 0, len(d.AcceptingUser))
	for _, id := range d.AcceptingUser {
		accepting = append(accepting, id.Hex())
	}
	topic := d.Topic
	if topic == nil {
		topic = []string{}
	}
	return &Offer{
		ID:            d.ID.Hex(),
		UserMail:      d.UserMail.Hex(),
		AcceptingUser: accepting,
		Subject:       d.Subject,
		Topic:         topic,
		Year:          d.Year,
		EndDate:       d.EndDate.UTC(),
		IsAccepted:    d.IsAccepted,
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
	}
}

func objectIDs(ids []string) ([]primitive.ObjectID, error) {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidID, id)
		}
		out = append(out, oid)
	}
	return out, nil
}

func offerToDocument(o *Offer) (*offerDocument, error) {
	owner, err := primitive.ObjectIDFromHex(o.UserMail)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidID, o.UserMail)
	}
	accepting, err := objectIDs(o.AcceptingUser)
	if err != nil {
		return nil, err
	}
	return &offerDocument{
		UserMail:      owner,
		AcceptingUser: accepting,
		Subject:       o.Subject,
		Topic:         o.Topic,
		Year:          o.Year,
		EndDate:       o.EndDate,
		IsAccepted:    o.IsAccepted,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}, nil
}

// MongoStore is the document-store backend.
type MongoStore struct {
	client *mongo.Client
	users  *mongoUsers
	offers *mongoOffers
}

// NewMongoStore connects to uri, verifies the connection and ensures the
// unique email index exists.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(10).
		SetServerSelectionTimeout(5 * time.Second).
		SetSocketTimeout(45 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client: client,
		users:  &mongoUsers{coll: db.Collection(usersCollection)},
		offers: &mongoOffers{coll: db.Collection(offersCollection)},
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.users.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create email index: %w", err)
	}
	_, err = s.offers.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userMail", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create offer owner index: %w", err)
	}
	return nil
}

func (s *MongoStore) Users() UserRepository   { return s.users }
func (s *MongoStore) Offers() OfferRepository { return s.offers }

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

type mongoUsers struct {
	coll *mongo.Collection
}

func idFilter(id string) (bson.M, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidID
	}
	return bson.M{"_id": oid}, nil
}

func (r *mongoUsers) List(ctx context.Context) ([]*User, error) {
	cur, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []userDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	users := make([]*User, 0, len(docs))
	for i := range docs {
		users = append(users, docs[i].toUser())
	}
	return users, nil
}

func (r *mongoUsers) findOne(ctx context.Context, filter bson.M) (*User, error) {
	var doc userDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc.toUser(), nil
}

func (r *mongoUsers) Get(ctx context.Context, id string) (*User, error) {
	filter, err := idFilter(id)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, filter)
}

func (r *mongoUsers) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *mongoUsers) Create(ctx context.Context, user *User) error {
	doc := userDocument{
		Email:            user.Email,
		PushMessageToken: user.PushMessageToken,
		MailAuthCode:     user.MailAuthCode,
		LastCodeRequest:  Truncate(user.LastCodeRequest),
		CreatedAt:        user.CreatedAt,
		UpdatedAt:        user.UpdatedAt,
	}
	if user.ID != "" {
		oid, err := primitive.ObjectIDFromHex(user.ID)
		if err != nil {
			return ErrInvalidID
		}
		doc.ID = oid
	} else {
		doc.ID = primitive.NewObjectID()
	}
	now := Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = now
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrEmailExists
		}
		return err
	}

	user.ID = doc.ID.Hex()
	user.LastCodeRequest = doc.LastCodeRequest
	user.CreatedAt = doc.CreatedAt
	user.UpdatedAt = doc.UpdatedAt
	return nil
}

func (r *mongoUsers) Update(ctx context.Context, id, email string, pushMessageToken *string) (*User, error) {
	filter, err := idFilter(id)
	if err != nil {
		return nil, err
	}
	set := bson.M{"email": email, "updatedAt": Now()}
	if pushMessageToken != nil {
		set["pushMessageToken"] = *pushMessageToken
	}

	var doc userDocument
	err = r.coll.FindOneAndUpdate(ctx, filter, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrEmailExists
		}
		return nil, err
	}
	return doc.toUser(), nil
}

func (r *mongoUsers) Delete(ctx context.Context, id string) (*User, error) {
	filter, err := idFilter(id)
	if err != nil {
		return nil, err
	}
	var doc userDocument
	if err := r.coll.FindOneAndDelete(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc.toUser(), nil
}

func (r *mongoUsers) RotateMailAuthCode(ctx context.Context, id string, expectCode int, expectAt time.Time, newCode int, at time.Time) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, ErrInvalidID
	}
	at = Truncate(at)
	filter := bson.M{
		"_id":             oid,
		"mailAuthCode":    expectCode,
		"lastCodeRequest": Truncate(expectAt),
	}
	update := bson.M{"$set": bson.M{
		"mailAuthCode":    newCode,
		"lastCodeRequest": at,
		"updatedAt":       at,
	}}

	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

type mongoOffers struct {
	coll *mongo.Collection
}

func (r *mongoOffers) List(ctx context.Context) ([]*Offer, error) {
	cur, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []offerDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	offers := make([]*Offer, 0, len(docs))
	for i := range docs {
		offers = append(offers, docs[i].toOffer())
	}
	return offers, nil
}

func (r *mongoOffers) Get(ctx context.Context, id string) (*Offer, error) {
	filter, err := idFilter(id)
	if err != nil {
		return nil, err
	}
	var doc offerDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc.toOffer(), nil
}

func (r *mongoOffers) Create(ctx context.Context, offer *Offer) error {
	normalizeOffer(offer)
	now := Now()
	offer.CreatedAt = now
	offer.UpdatedAt = now

	doc, err := offerToDocument(offer)
	if err != nil {
		return err
	}
	doc.ID = primitive.NewObjectID()

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return err
	}
	offer.ID = doc.ID.Hex()
	return nil
}

func (r *mongoOffers) Replace(ctx context.Context, offer *Offer) (*Offer, error) {
	filter, err := idFilter(offer.ID)
	if err != nil {
		return nil, err
	}
	normalizeOffer(offer)
	doc, err := offerToDocument(offer)
	if err != nil {
		return nil, err
	}

	set := bson.M{
		"userMail":      doc.UserMail,
		"acceptingUser": doc.AcceptingUser,
		"subject":       doc.Subject,
		"topic":         doc.Topic,
		"year":          doc.Year,
		"endDate":       doc.EndDate,
		"isAccepted":    doc.IsAccepted,
		"updatedAt":     Now(),
	}

	var updated offerDocument
	err = r.coll.FindOneAndUpdate(ctx, filter, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return updated.toOffer(), nil
}

func (r *mongoOffers) Delete(ctx context.Context, id string) (*Offer, error) {
	filter, err := idFilter(id)
	if err != nil {
		return nil, err
	}
	var doc offerDocument
	if err := r.coll.FindOneAndDelete(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc.toOffer(), nil
}
