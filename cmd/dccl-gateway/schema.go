package main

import (
	"github.com/kstaniek/dccl-acomms/internal/dccl/fieldcodec"
	"github.com/kstaniek/dccl-acomms/internal/dccl/header"
	"github.com/kstaniek/dccl-acomms/internal/dccl/schema"
)

// gatewayHeaderConfig fixes the wire header field widths for this
// deployment: an 8-bit DCCL id, 7-bit node addresses (supports up to 127
// modem nodes plus the broadcast address), and an 8-bit coarse time field.
func gatewayHeaderConfig() header.Config {
	return header.Config{
		DcclIDBits: 8,
		SourceBits: 7,
		DestBits:   7,
		TimeBits:   8,
	}
}

// ctdSchema is a demonstration record: a periodic conductivity/temperature
// /depth reading, the kind of fixed-shape telemetry message DCCL was built
// to pack tightly.
func ctdSchema() *schema.RecordDescriptor {
	return &schema.RecordDescriptor{
		Name: "CTDReading",
		ID:   10,
		Fields: []schema.FieldDescriptor{
			{Name: "source", Type: schema.TypeInt, Section: schema.Head, Codec: fieldcodec.NameInt, Params: schema.CodecParams{Lo: 0, Hi: 127}},
			{Name: "destination", Type: schema.TypeInt, Section: schema.Head, Codec: fieldcodec.NameInt, Params: schema.CodecParams{Lo: 0, Hi: 127}},
			{Name: "dccl_id", Type: schema.TypeInt, Section: schema.Head, Codec: fieldcodec.NameInt, Params: schema.CodecParams{Lo: 0, Hi: 255}},
			{Name: "time", Type: schema.TypeInt, Section: schema.Head, Codec: fieldcodec.NameInt, Params: schema.CodecParams{Lo: 0, Hi: 255}},
			{Name: "temperature", Type: schema.TypeFloat, Section: schema.Body, Codec: fieldcodec.NameFloat, Params: schema.CodecParams{Lo: -5, Hi: 40, Precision: 2}},
			{Name: "conductivity", Type: schema.TypeFloat, Section: schema.Body, Codec: fieldcodec.NameFloat, Params: schema.CodecParams{Lo: 0, Hi: 70, Precision: 2}},
			{Name: "depth", Type: schema.TypeFloat, Section: schema.Body, Codec: fieldcodec.NameFloat, Params: schema.CodecParams{Lo: 0, Hi: 6000, Precision: 1}},
		},
	}
}

// statusSchema is a second demonstration record: a compact vehicle status
// report, registered alongside ctdSchema so the contest between queues has
// more than one kind of traffic to arbitrate.
func statusSchema() *schema.RecordDescriptor {
	return &schema.RecordDescriptor{
		Name: "VehicleStatus",
		ID:   11,
		Fields: []schema.FieldDescriptor{
			{Name: "source", Type: schema.TypeInt, Section: schema.Head, Codec: fieldcodec.NameInt, Params: schema.CodecParams{Lo: 0, Hi: 127}},
			{Name: "destination", Type: schema.TypeInt, Section: schema.Head, Codec: fieldcodec.NameInt, Params: schema.CodecParams{Lo: 0, Hi: 127}},
			{Name: "dccl_id", Type: schema.TypeInt, Section: schema.Head, Codec: fieldcodec.NameInt, Params: schema.CodecParams{Lo: 0, Hi: 255}},
			{Name: "time", Type: schema.TypeInt, Section: schema.Head, Codec: fieldcodec.NameInt, Params: schema.CodecParams{Lo: 0, Hi: 255}},
			{Name: "heading", Type: schema.TypeFloat, Section: schema.Body, Codec: fieldcodec.NameFloat, Params: schema.CodecParams{Lo: 0, Hi: 359, Precision: 0}},
			{Name: "battery_pct", Type: schema.TypeInt, Section: schema.Body, Codec: fieldcodec.NameInt, Params: schema.CodecParams{Lo: 0, Hi: 100}},
			{Name: "fault", Type: schema.TypeBool, Section: schema.Body, Codec: fieldcodec.NameBool},
		},
	}
}
