package index

var RackMarshalFixture = rackMarshalFixture
