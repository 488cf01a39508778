package pcdec

const (
	// CompressedPointCloudSchema is the schema name of [CompressedPointCloud] messages.
	CompressedPointCloudSchema = "point_cloud_interfaces/msg/CompressedPointCloud2"
	// PointCloudSchema is the schema name of [PointCloud] messages.
	PointCloudSchema = "sensor_msgs/msg/PointCloud2"
)

// MessageConverter binds a conversion function to a pair of schemas.
type MessageConverter struct {
	FromSchemaName string
	ToSchemaName   string
	Converter      func(in *CompressedPointCloud) *PointCloud
}

// Host is the application that delivers messages to converters.
//
// The host calls the registered converter once per message and always gets a message back.
type Host interface {
	RegisterMessageConverter(converter MessageConverter)
}

// Activate creates a [Converter] with the options and registers it with the host for the
// [CompressedPointCloudSchema] to [PointCloudSchema] conversion.
//
// Codec initialization starts here, once. The returned converter should be closed by the caller
// when the host shuts down.
func Activate(host Host, options ...Option) *Converter {
	if host == nil {
		panic("host can't be nil")
	}

	converter := New(options...)
	host.RegisterMessageConverter(MessageConverter{
		FromSchemaName: CompressedPointCloudSchema,
		ToSchemaName:   PointCloudSchema,
		Converter:      converter.Convert,
	})

	return converter
}
