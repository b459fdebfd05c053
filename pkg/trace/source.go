package trace

import (
	"go.uber.org/zap"

	"github.com/kminoda/CARET-analyze/pkg/logger"
	"github.com/kminoda/CARET-analyze/pkg/record"
)

// Source composes analysis tables from a DataModel's raw tables. Every
// composed table is freshly built; the raw tables are never mutated.
//
// The compositions rely on the raw tables being timestamp-sorted, which
// DataModel guarantees when events are fed in order.
type Source struct {
	data *DataModel
	log  *zap.Logger
}

// NewSource creates a Source over the given data model.
func NewSource(data *DataModel) *Source {
	return &Source{
		data: data,
		log:  logger.Named("trace.source"),
	}
}

// CallbackRecords pairs each callback_start with the callback_end of the
// same callback object that follows it.
//
// Columns: callback_start_timestamp, callback_end_timestamp,
// is_intra_process, callback_object.
func (s *Source) CallbackRecords() (*record.Records, error) {
	recs, err := record.MergeSequential(
		s.data.CallbackStart(), s.data.CallbackEnd(),
		ColumnCallbackStart, ColumnCallbackEnd,
		[]record.KeyPair{record.Key(ColumnCallbackObject)},
		record.SequentialOptions{Kind: record.MergeInner},
	)
	if err != nil {
		return nil, err
	}

	out, err := recs.Project(ColumnCallbackStart, ColumnCallbackEnd, ColumnIsIntraProcess, ColumnCallbackObject)
	if err != nil {
		return nil, err
	}
	s.log.Debug("composed callback records", zap.Int("rows", out.Len()))
	return out, nil
}

// PublishRecords follows each rclcpp publish down the stack: the rcl publish
// and dds write that reused its message address, and the source timestamp
// the transport bound to that address. Lower layers are optional; a publish
// with no deeper events keeps those columns unset.
//
// Columns: publisher_handle, rclcpp_publish_timestamp, rcl_publish_timestamp,
// dds_write_timestamp, source_timestamp, message_timestamp.
func (s *Source) PublishRecords() (*record.Records, error) {
	rcl, err := s.data.RclPublish().Project(ColumnRclPublish, ColumnMessageAddr)
	if err != nil {
		return nil, err
	}

	step, err := record.MergeSequentialForAddrTrack(
		s.data.RclcppPublish(), rcl,
		ColumnRclcppPublish, ColumnRclPublish,
		[]record.KeyPair{record.Key(ColumnMessageAddr)},
		record.MergeLeft, nil,
	)
	if err != nil {
		return nil, err
	}

	if step, err = step.Sort(ColumnRclPublish, true); err != nil {
		return nil, err
	}
	step, err = record.MergeSequentialForAddrTrack(
		step, s.data.DDSWrite(),
		ColumnRclPublish, ColumnDDSWrite,
		[]record.KeyPair{record.Key(ColumnMessageAddr)},
		record.MergeLeft, nil,
	)
	if err != nil {
		return nil, err
	}

	if step, err = step.Sort(ColumnDDSWrite, true); err != nil {
		return nil, err
	}
	step, err = record.MergeSequentialForAddrTrack(
		step, s.data.DDSBindAddrToStamp(),
		ColumnDDSWrite, ColumnDDSBind,
		[]record.KeyPair{record.Key(ColumnMessageAddr)},
		record.MergeLeft, nil,
	)
	if err != nil {
		return nil, err
	}

	if step, err = step.SortStable(ColumnRclcppPublish); err != nil {
		return nil, err
	}
	out, err := step.Project(
		ColumnPublisherHandle, ColumnRclcppPublish, ColumnRclPublish,
		ColumnDDSWrite, ColumnSourceTimestamp, ColumnMessageTimestamp,
	)
	if err != nil {
		return nil, err
	}
	s.log.Debug("composed publish records", zap.Int("rows", out.Len()))
	return out, nil
}

// SubscribeRecords pairs each inter-process dispatch with the callback start
// that consumed it.
//
// Columns: callback_object, callback_start_timestamp, source_timestamp,
// message_timestamp.
func (s *Source) SubscribeRecords() (*record.Records, error) {
	starts := s.data.CallbackStart().Filter(func(rec *record.Record) bool {
		return rec.GetDefault(ColumnIsIntraProcess, 0) == 0
	})
	startsProj, err := starts.Project(ColumnCallbackStart, ColumnCallbackObject)
	if err != nil {
		return nil, err
	}

	recs, err := record.MergeSequential(
		s.data.DispatchSubscription(), startsProj,
		ColumnDispatch, ColumnCallbackStart,
		[]record.KeyPair{record.Key(ColumnCallbackObject)},
		record.SequentialOptions{Kind: record.MergeLeft},
	)
	if err != nil {
		return nil, err
	}

	out, err := recs.Project(ColumnCallbackObject, ColumnCallbackStart, ColumnSourceTimestamp, ColumnMessageTimestamp)
	if err != nil {
		return nil, err
	}
	s.log.Debug("composed subscribe records", zap.Int("rows", out.Len()))
	return out, nil
}

// InterProcessCommRecords joins the publish chain to the subscription side
// on the transport-bound source timestamp. Publishes nothing consumed keep
// their callback columns unset.
//
// Columns: callback_object, callback_start_timestamp, publisher_handle,
// rclcpp_publish_timestamp, rcl_publish_timestamp, dds_write_timestamp,
// source_timestamp.
func (s *Source) InterProcessCommRecords() (*record.Records, error) {
	pub, err := s.PublishRecords()
	if err != nil {
		return nil, err
	}
	sub, err := s.SubscribeRecords()
	if err != nil {
		return nil, err
	}
	subProj, err := sub.Project(ColumnSourceTimestamp, ColumnCallbackObject, ColumnCallbackStart)
	if err != nil {
		return nil, err
	}

	comm, err := record.Merge(pub, subProj,
		[]record.KeyPair{record.Key(ColumnSourceTimestamp)},
		record.MergeLeft, nil,
	)
	if err != nil {
		return nil, err
	}

	out, err := comm.Project(
		ColumnCallbackObject, ColumnCallbackStart, ColumnPublisherHandle,
		ColumnRclcppPublish, ColumnRclPublish, ColumnDDSWrite, ColumnSourceTimestamp,
	)
	if err != nil {
		return nil, err
	}
	s.log.Debug("composed inter-process comm records", zap.Int("rows", out.Len()))
	return out, nil
}

// IntraProcessCommRecords follows each intra-process publish to the callback
// that consumed the message inside the same process. A published message may
// be handed over directly or through a reconstructed copy; delivery is
// tracked under whichever address the dispatch saw.
//
// Columns: callback_object, callback_start_timestamp, publisher_handle,
// rclcpp_publish_timestamp, message_timestamp.
func (s *Source) IntraProcessCommRecords() (*record.Records, error) {
	step, err := record.MergeSequentialForAddrTrack(
		s.data.RclcppIntraPublish(), s.data.MessageConstruct(),
		ColumnRclcppIntraPublish, ColumnMessageConstruct,
		[]record.KeyPair{{Left: ColumnMessageAddr, Right: ColumnOriginalMessageAddr}},
		record.MergeLeft, nil,
	)
	if err != nil {
		return nil, err
	}

	// Messages without a construct event are delivered under their original
	// address.
	step = fillUnsetFrom(step, ColumnConstructedMessageAddr, ColumnMessageAddr)

	dispatchProj, err := s.data.DispatchIntraProcess().Project(ColumnDispatch, ColumnCallbackObject, ColumnMessageAddr)
	if err != nil {
		return nil, err
	}
	step, err = record.MergeSequentialForAddrTrack(
		step, dispatchProj,
		ColumnRclcppIntraPublish, ColumnDispatch,
		[]record.KeyPair{{Left: ColumnConstructedMessageAddr, Right: ColumnMessageAddr}},
		record.MergeLeft, nil,
	)
	if err != nil {
		return nil, err
	}

	if step, err = step.Sort(ColumnDispatch, true); err != nil {
		return nil, err
	}
	starts := s.data.CallbackStart().Filter(func(rec *record.Record) bool {
		return rec.GetDefault(ColumnIsIntraProcess, 0) == 1
	})
	startsProj, err := starts.Project(ColumnCallbackStart, ColumnCallbackObject)
	if err != nil {
		return nil, err
	}
	step, err = record.MergeSequential(
		step, startsProj,
		ColumnDispatch, ColumnCallbackStart,
		[]record.KeyPair{record.Key(ColumnCallbackObject)},
		record.SequentialOptions{Kind: record.MergeLeft},
	)
	if err != nil {
		return nil, err
	}

	renamed, err := step.RenameColumns(map[string]string{ColumnRclcppIntraPublish: ColumnRclcppPublish})
	if err != nil {
		return nil, err
	}
	if renamed, err = renamed.SortStable(ColumnRclcppPublish); err != nil {
		return nil, err
	}
	out, err := renamed.Project(
		ColumnCallbackObject, ColumnCallbackStart, ColumnPublisherHandle,
		ColumnRclcppPublish, ColumnMessageTimestamp,
	)
	if err != nil {
		return nil, err
	}
	s.log.Debug("composed intra-process comm records", zap.Int("rows", out.Len()))
	return out, nil
}

// fillUnsetFrom returns a copy of recs where dst takes src's value on rows
// that have dst unset.
func fillUnsetFrom(recs *record.Records, dst, src string) *record.Records {
	out := recs.Clone()
	out.Each(func(_ int, rec *record.Record) bool {
		if !rec.Has(dst) {
			if v, ok := rec.Get(src); ok {
				rec.Set(dst, v)
			}
		}
		return true
	})
	return out
}
