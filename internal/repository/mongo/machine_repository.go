package mongo

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"pricewatch/internal/model"
)

// MachineRepository handles machine record persistence.
type MachineRepository struct {
	collection *mongo.Collection
}

// NewMachineRepository creates a new MachineRepository.
func NewMachineRepository(db *mongo.Database) *MachineRepository {
	return &MachineRepository{
		collection: db.Collection("machines"),
	}
}

// Create inserts a new machine record.
func (r *MachineRepository) Create(ctx context.Context, machine *model.Machine) error {
	now := time.Now().UTC()
	machine.CreatedAt = now
	machine.UpdatedAt = now
	result, err := r.collection.InsertOne(ctx, machine)
	if err != nil {
		return err
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		machine.ID = oid
	}
	return nil
}

// GetByID retrieves a machine by its ID.
func (r *MachineRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*model.Machine, error) {
	var machine model.Machine
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&machine)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &machine, nil
}

// GetByIDs retrieves every machine named in ids, for batch dispatch (§4.7).
func (r *MachineRepository) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*model.Machine, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var machines []*model.Machine
	if err := cursor.All(ctx, &machines); err != nil {
		return nil, err
	}
	return machines, nil
}

// UpdatePrice sets the machine's last accepted price (§4.6 VALIDATE
// acceptance: "reflected onto Machine.Price").
func (r *MachineRepository) UpdatePrice(ctx context.Context, id primitive.ObjectID, price *decimal.Decimal) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"price": price, "updated_at": time.Now().UTC()}},
	)
	return err
}

// UpdateLearnedSelector replaces the learned selector for one (machine,
// domain) pair (§3.1 invariant: at most one entry per domain).
func (r *MachineRepository) UpdateLearnedSelector(ctx context.Context, id primitive.ObjectID, domain string, sel model.LearnedSelector) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$set": bson.M{
				"learned_selectors." + domain: sel,
				"updated_at":                  time.Now().UTC(),
			},
		},
	)
	return err
}
