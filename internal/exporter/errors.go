package exporter

import "codeberg.org/mutker/envirod/internal/errors"

const (
	ErrInfluxPost    = errors.ErrorCode("exporter_influxdb_post_failed")
	ErrLuftdatenPost = errors.ErrorCode("exporter_luftdaten_post_failed")
	ErrSerialNumber  = errors.ErrorCode("exporter_serial_number_unavailable")
)
